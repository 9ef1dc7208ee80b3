package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewCorrelationID returns a time-sortable ULID used to pair a request
// message with the response that answers it.
func NewCorrelationID() string {
	return newULID()
}

// NewUnitID identifies one spawned worker goroutine. A restarted service
// runs under a fresh unit ID; old IDs are never reused.
func NewUnitID() string {
	return newULID()
}

// NewEventID returns the identifier stamped on lifecycle events.
func NewEventID() string {
	return newULID()
}
