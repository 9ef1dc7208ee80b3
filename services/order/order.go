// Package order implements the demo order service. Creating an order
// validates the buyer through a cross-service call to the user service, so
// the package doubles as the reference consumer of the in-flight Caller.
package order

import (
	"sort"
	"sync"

	maestro "github.com/drblury/maestro"
	"github.com/drblury/maestro/services/user"
)

// Name is the service name the worker registers under.
const Name = "orders"

// Order is one stored order.
type Order struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
}

// Service owns the in-memory order store.
type Service struct {
	mu     sync.Mutex
	orders map[int64]Order
	nextID int64
}

// New returns an empty order service.
func New() *Service {
	return &Service{orders: make(map[int64]Order)}
}

// Spec describes the worker to the runtime.
func (s *Service) Spec() maestro.WorkerSpec {
	mux := maestro.NewMux()
	mux.Handle("create_order", maestro.Typed(s.createOrder))
	mux.Handle("get_order", maestro.Typed(s.getOrder))
	mux.Handle("list_orders", maestro.Typed(s.listOrders))
	return maestro.WorkerSpec{Mux: mux}
}

type createOrderRequest struct {
	UserID   int64  `json:"user_id"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

func (s *Service) createOrder(req *maestro.Request, in createOrderRequest) (Order, error) {
	if in.Item == "" {
		return Order{}, maestro.Errorf("bad_request", "order item is required")
	}
	if in.Quantity <= 0 {
		return Order{}, maestro.Errorf("bad_request", "order quantity must be positive")
	}

	reply, err := req.Caller.Call(req.Ctx, user.Name, "validate_user",
		map[string]any{"id": in.UserID})
	if err != nil {
		return Order{}, err
	}
	if valid, _ := reply["valid"].(bool); !valid {
		return Order{}, maestro.Errorf("invalid_user", "user %d does not exist", in.UserID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o := Order{
		ID:       s.nextID,
		UserID:   in.UserID,
		Item:     in.Item,
		Quantity: in.Quantity,
		Status:   "created",
	}
	s.orders[o.ID] = o
	return o, nil
}

type orderRef struct {
	ID int64 `json:"id"`
}

func (s *Service) getOrder(_ *maestro.Request, in orderRef) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[in.ID]
	if !ok {
		return Order{}, maestro.Errorf("not_found", "order %d does not exist", in.ID)
	}
	return o, nil
}

type listOrdersResponse struct {
	Orders []Order `json:"orders"`
	Count  int     `json:"count"`
}

func (s *Service) listOrders(_ *maestro.Request, _ struct{}) (listOrdersResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := listOrdersResponse{Orders: make([]Order, 0, len(s.orders))}
	for _, o := range s.orders {
		out.Orders = append(out.Orders, o)
	}
	sort.Slice(out.Orders, func(i, j int) bool { return out.Orders[i].ID < out.Orders[j].ID })
	out.Count = len(out.Orders)
	return out, nil
}
