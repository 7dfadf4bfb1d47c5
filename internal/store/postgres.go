package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Braavos-Developer/diner-design/internal/common/logger"
)

const pgChangeChannel = "collection_changes"

const pgSchema = `
CREATE TABLE IF NOT EXISTS collections (
	key      TEXT PRIMARY KEY,
	data     JSONB NOT NULL,
	revision BIGINT NOT NULL
)`

// Postgres keeps each collection as one jsonb row keyed by collection name.
// The revision check rides the UPDATE's WHERE clause; change notifications
// go out over LISTEN/NOTIFY on a single channel.
type Postgres struct {
	pool   *pgxpool.Pool
	url    string
	origin string
	lg     *logger.Logger
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, url string, lg *logger.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Postgres{pool: pool, url: url, origin: newOrigin(), lg: lg}, nil
}

func (p *Postgres) Load(ctx context.Context, key string) ([]byte, uint64, error) {
	var data []byte
	var revision uint64
	err := p.pool.QueryRow(ctx,
		`SELECT data, revision FROM collections WHERE key = $1`, key,
	).Scan(&data, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", key, err)
	}
	return data, revision, nil
}

func (p *Postgres) Save(ctx context.Context, key string, data []byte, expected uint64) (uint64, error) {
	next := expected + 1
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save %s: %w", key, err)
	}
	defer tx.Rollback(ctx)

	if expected == 0 {
		// First write may race another context's first write; ON CONFLICT
		// DO NOTHING turns that race into a revision mismatch.
		ct, err := tx.Exec(ctx,
			`INSERT INTO collections (key, data, revision) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO NOTHING`, key, data, next)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", key, err)
		}
		if ct.RowsAffected() == 0 {
			return 0, ErrRevisionMismatch
		}
	} else {
		ct, err := tx.Exec(ctx,
			`UPDATE collections SET data = $2, revision = $3
			 WHERE key = $1 AND revision = $4`, key, data, next, expected)
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", key, err)
		}
		if ct.RowsAffected() == 0 {
			return 0, ErrRevisionMismatch
		}
	}

	// NOTIFY payloads are capped at 8k, so carry the key and revision only;
	// listeners re-read the collection.
	note, err := json.Marshal(Notification{Key: key, Revision: next, Origin: p.origin})
	if err != nil {
		return 0, fmt.Errorf("marshal notification %s: %w", key, err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, pgChangeChannel, string(note)); err != nil {
		return 0, fmt.Errorf("notify %s: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit save %s: %w", key, err)
	}
	return next, nil
}

func (p *Postgres) Watch(ctx context.Context) (<-chan Notification, error) {
	// LISTEN needs a dedicated session outside the pool.
	conn, err := pgx.Connect(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("listen connect: %w", err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+pgChangeChannel); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("listen: %w", err)
	}

	out := make(chan Notification, watchBuffer)
	go func() {
		defer close(out)
		defer conn.Close(context.Background())
		for {
			raw, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.lg.Error("listen_failed", err, nil)
				}
				return
			}
			var n Notification
			if err := json.Unmarshal([]byte(raw.Payload), &n); err != nil {
				p.lg.Error("bad_notification", err, map[string]any{"channel": raw.Channel})
				continue
			}
			if n.Origin == p.origin {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
