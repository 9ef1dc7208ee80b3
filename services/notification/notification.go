// Package notification implements the demo notification service. Sends are
// simulated; the service only records per-channel counters, which makes it
// a convenient target for introspection and stats assertions.
package notification

import (
	"sync"

	maestro "github.com/drblury/maestro"
)

// Name is the service name the worker registers under.
const Name = "notifications"

// Service counts simulated sends per channel.
type Service struct {
	mu   sync.Mutex
	sent map[string]int64
}

// New returns a notification service with zeroed counters.
func New() *Service {
	return &Service{sent: make(map[string]int64)}
}

// Spec describes the worker to the runtime.
func (s *Service) Spec() maestro.WorkerSpec {
	mux := maestro.NewMux()
	mux.Handle("send_notification", maestro.Typed(s.sendNotification))
	mux.Handle("get_stats", maestro.Typed(s.getStats))
	return maestro.WorkerSpec{Mux: mux}
}

type sendRequest struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

type sendResponse struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Delivered bool   `json:"delivered"`
}

func (s *Service) sendNotification(req *maestro.Request, in sendRequest) (sendResponse, error) {
	if in.Channel == "" {
		return sendResponse{}, maestro.Errorf("bad_request", "notification channel is required")
	}
	if in.Recipient == "" {
		return sendResponse{}, maestro.Errorf("bad_request", "notification recipient is required")
	}

	s.mu.Lock()
	s.sent[in.Channel]++
	s.mu.Unlock()

	req.Logger.Debug("notification sent", maestro.LogFields{
		"channel":   in.Channel,
		"recipient": in.Recipient,
	})
	return sendResponse{Channel: in.Channel, Recipient: in.Recipient, Delivered: true}, nil
}

type statsResponse struct {
	Sent  map[string]int64 `json:"sent"`
	Total int64            `json:"total"`
}

func (s *Service) getStats(_ *maestro.Request, _ struct{}) (statsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := statsResponse{Sent: make(map[string]int64, len(s.sent))}
	for channel, n := range s.sent {
		out.Sent[channel] = n
		out.Total += n
	}
	return out, nil
}
