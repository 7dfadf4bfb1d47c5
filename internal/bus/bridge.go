package bus

import (
	"context"

	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/store"
)

// Bridge pumps cross-context store notifications into the local bus, so a
// write in another context surfaces here as the same event a local write
// would have published. Runs until ctx is cancelled.
func Bridge(ctx context.Context, st store.Store, b *Bus, lg *logger.Logger) error {
	notes, err := st.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for n := range notes {
			event, ok := domain.EventForKey(n.Key)
			if !ok {
				continue
			}
			lg.Debug("remote_change", map[string]any{"key": n.Key, "revision": n.Revision, "origin": n.Origin})
			b.Publish(event, n)
		}
	}()
	return nil
}
