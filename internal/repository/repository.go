// Package repository provides the only write path to each collection.
// Repositories assign identity and timestamps, validate business rules,
// persist through the revisioned store, and publish one change event per
// successful mutation.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/store"
)

// saveAttempts bounds the optimistic-concurrency retry loop. Contention is
// rare (small, infrequent mutations), so a handful of retries is plenty.
const saveAttempts = 5

// Broadcaster forwards one record-level update to other contexts. A nil
// Broadcaster is valid; the store's own notifications still reach them.
type Broadcaster interface {
	Broadcast(updateType string, record any) error
}

// collection binds one entity type to its storage key and bus event.
type collection[T any] struct {
	st    store.Store
	bus   *bus.Bus
	lg    *logger.Logger
	key   string
	event string
}

// list reads the collection fresh from the store. Corrupt persisted data is
// recovered as an empty collection and logged; reads stay available.
func (c *collection[T]) list(ctx context.Context) ([]T, uint64, error) {
	data, rev, err := c.st.Load(ctx, c.key)
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", c.key, err)
	}
	if len(data) == 0 {
		return nil, rev, nil
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		c.lg.Error("corrupt_collection", err, map[string]any{"key": c.key})
		return nil, rev, nil
	}
	return records, rev, nil
}

// mutate runs one read-modify-write against the collection. apply receives
// the current records and returns the full replacement; on a concurrent
// write the loop re-reads and re-applies. The whole mutation either commits
// or leaves the stored sequence untouched.
func (c *collection[T]) mutate(ctx context.Context, apply func([]T) ([]T, error)) ([]T, error) {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		records, rev, err := c.list(ctx)
		if err != nil {
			return nil, err
		}
		next, err := apply(records)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", c.key, err)
		}
		if _, err := c.st.Save(ctx, c.key, data, rev); err != nil {
			if errors.Is(err, store.ErrRevisionMismatch) {
				continue
			}
			return nil, fmt.Errorf("save %s: %w", c.key, err)
		}
		return next, nil
	}
	return nil, fmt.Errorf("save %s: gave up after %d contended attempts: %w",
		c.key, saveAttempts, store.ErrRevisionMismatch)
}

// notify publishes the local change event. Same-context subscribers run
// synchronously here; other contexts hear about the write from the store.
func (c *collection[T]) notify(payload any) {
	c.bus.Publish(c.event, payload)
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newID composes a time-based prefix with a random suffix, matching the
// order-<unixms>-<rand> shape the clients already parse.
func newID(prefix string) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
