package stats

import (
	"sort"
	"sync"
	"time"
)

// HeartbeatRecord captures the most recent liveness signal from a service.
type HeartbeatRecord struct {
	Service    string    `json:"service"`
	LastBeat   time.Time `json:"lastBeat"`
	LastAction string    `json:"lastAction,omitempty"`
	Beats      int64     `json:"beats"`
}

// Store is the shared statistics plane: named counters plus per-service
// heartbeats. Workers write into it while the monitor and the introspection
// surface read from it, so every method is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	counters map[string]int64
	beats    map[string]HeartbeatRecord

	clock func() time.Time
}

func NewStore() *Store {
	return &Store{
		counters: make(map[string]int64),
		beats:    make(map[string]HeartbeatRecord),
		clock:    time.Now,
	}
}

// Incr adds delta to the named counter and returns the new value. Counters
// spring into existence at zero on first use.
func (s *Store) Incr(key string, delta int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key] += delta
	return s.counters[key]
}

// Get returns the counter value, zero when the key was never written.
func (s *Store) Get(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counters[key]
}

// Keys returns the counter names, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.counters))
	for key := range s.counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies every counter into a fresh map.
func (s *Store) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.counters))
	for key, value := range s.counters {
		out[key] = value
	}
	return out
}

// Beat records a liveness signal from service.
func (s *Store) Beat(service string) {
	s.beat(service, "")
}

// BeatWithAction records a liveness signal noting the action the service is
// processing, so a stalled service's record shows what it was last doing.
func (s *Store) BeatWithAction(service, action string) {
	s.beat(service, action)
}

func (s *Store) beat(service, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.beats[service]
	rec.Service = service
	rec.LastBeat = s.clock()
	if action != "" {
		rec.LastAction = action
	}
	rec.Beats++
	s.beats[service] = rec
}

// Heartbeat returns the record for service, reporting whether one exists.
func (s *Store) Heartbeat(service string) (HeartbeatRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.beats[service]
	return rec, ok
}

// Heartbeats copies every heartbeat record into a fresh map.
func (s *Store) Heartbeats() map[string]HeartbeatRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]HeartbeatRecord, len(s.beats))
	for service, rec := range s.beats {
		out[service] = rec
	}
	return out
}

// Forget drops the heartbeat record for service. The supervisor calls this
// when a service is stopped so stale beats do not linger.
func (s *Store) Forget(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.beats, service)
}
