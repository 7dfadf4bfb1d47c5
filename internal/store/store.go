// Package store persists each collection as a serialized sequence under a
// fixed key, shared by every context of the deployment. Writes are guarded
// by a revision check so two contexts racing a read-modify-write cannot
// silently overwrite each other; losers see ErrRevisionMismatch and retry.
//
// Every successful Save is observable by other contexts through Watch. A
// handle never receives notifications for its own writes: the writer is
// expected to self-notify synchronously, mirroring how browser storage
// events fire only in other tabs.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// ErrRevisionMismatch reports that the stored collection moved past the
// revision the caller read. Re-read and re-apply.
var ErrRevisionMismatch = errors.New("store: revision mismatch")

// Notification describes a committed write in another context.
type Notification struct {
	Key      string `json:"key"`
	NewValue []byte `json:"newValue,omitempty"`
	Revision uint64 `json:"revision"`
	Origin   string `json:"origin"`
}

type Store interface {
	// Load returns the stored bytes and their revision. An absent key
	// yields nil bytes at revision 0, not an error.
	Load(ctx context.Context, key string) ([]byte, uint64, error)

	// Save overwrites the collection if its revision still equals expected,
	// returning the new revision. ErrRevisionMismatch otherwise.
	Save(ctx context.Context, key string, data []byte, expected uint64) (uint64, error)

	// Watch streams notifications for writes committed by other handles.
	// The channel closes when ctx is cancelled.
	Watch(ctx context.Context) (<-chan Notification, error)

	Close() error
}

// newOrigin tags a handle so its own writes can be told apart from everyone
// else's on the notification path.
func newOrigin() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "origin-unknown"
	}
	return hex.EncodeToString(b)
}
