package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/Braavos-Developer/diner-design/internal/common/logger"
)

const changeChannelPrefix = "diner:changes:"

// Redis keeps each collection as a JSON envelope {revision, data} under its
// key. Saves run inside a WATCH/MULTI transaction so the revision check and
// the overwrite commit atomically; the same transaction publishes the change
// notification on the key's channel.
type Redis struct {
	client *redis.Client
	origin string
	lg     *logger.Logger
}

var _ Store = (*Redis)(nil)

type redisEnvelope struct {
	Revision uint64          `json:"revision"`
	Data     json.RawMessage `json:"data"`
}

func OpenRedis(ctx context.Context, url string, lg *logger.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client, origin: newOrigin(), lg: lg}, nil
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, uint64, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt envelope: recover as empty rather than failing reads.
		r.lg.Error("corrupt_envelope", err, map[string]any{"key": key})
		return nil, 0, nil
	}
	return env.Data, env.Revision, nil
}

func (r *Redis) Save(ctx context.Context, key string, data []byte, expected uint64) (uint64, error) {
	next := expected + 1
	env, err := json.Marshal(redisEnvelope{Revision: next, Data: data})
	if err != nil {
		return 0, fmt.Errorf("marshal envelope %s: %w", key, err)
	}
	note, err := json.Marshal(Notification{Key: key, NewValue: data, Revision: next, Origin: r.origin})
	if err != nil {
		return 0, fmt.Errorf("marshal notification %s: %w", key, err)
	}

	txErr := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current := uint64(0)
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cur redisEnvelope
			if jsonErr := json.Unmarshal(raw, &cur); jsonErr == nil {
				current = cur.Revision
			}
		}
		if current != expected {
			return ErrRevisionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, env, 0)
			pipe.Publish(ctx, changeChannelPrefix+key, note)
			return nil
		})
		return err
	}, key)

	if errors.Is(txErr, redis.TxFailedErr) {
		return 0, ErrRevisionMismatch
	}
	if txErr != nil {
		if errors.Is(txErr, ErrRevisionMismatch) {
			return 0, ErrRevisionMismatch
		}
		return 0, fmt.Errorf("redis save %s: %w", key, txErr)
	}
	return next, nil
}

func (r *Redis) Watch(ctx context.Context) (<-chan Notification, error) {
	pubsub := r.client.PSubscribe(ctx, changeChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Notification, watchBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					r.lg.Error("bad_notification", err, map[string]any{"channel": msg.Channel})
					continue
				}
				if n.Origin == r.origin {
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error { return r.client.Close() }
