// Package user implements the demo user directory service. It keeps its
// records in memory and exists to exercise the runtime's call path from a
// plain business-logic package.
package user

import (
	"sort"
	"sync"

	maestro "github.com/drblury/maestro"
)

// Name is the service name the worker registers under.
const Name = "users"

// User is one directory record.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Service owns the in-memory user store. All handlers run on the worker
// goroutine, but the store is still locked so tests and future callers can
// inspect it from outside.
type Service struct {
	mu     sync.Mutex
	users  map[int64]User
	nextID int64
}

// New returns an empty user service.
func New() *Service {
	return &Service{users: make(map[int64]User)}
}

// Spec describes the worker to the runtime.
func (s *Service) Spec() maestro.WorkerSpec {
	mux := maestro.NewMux()
	mux.Handle("create_user", maestro.Typed(s.createUser))
	mux.Handle("get_user", maestro.Typed(s.getUser))
	mux.Handle("list_users", maestro.Typed(s.listUsers))
	mux.Handle("validate_user", maestro.Typed(s.validateUser))
	return maestro.WorkerSpec{Mux: mux}
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Service) createUser(_ *maestro.Request, in createUserRequest) (User, error) {
	if in.Name == "" {
		return User{}, maestro.Errorf("bad_request", "user name is required")
	}
	if in.Email == "" {
		return User{}, maestro.Errorf("bad_request", "user email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := User{ID: s.nextID, Name: in.Name, Email: in.Email}
	s.users[u.ID] = u
	return u, nil
}

type userRef struct {
	ID int64 `json:"id"`
}

func (s *Service) getUser(_ *maestro.Request, in userRef) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[in.ID]
	if !ok {
		return User{}, maestro.Errorf("not_found", "user %d does not exist", in.ID)
	}
	return u, nil
}

type listUsersResponse struct {
	Users []User `json:"users"`
	Count int    `json:"count"`
}

func (s *Service) listUsers(_ *maestro.Request, _ struct{}) (listUsersResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := listUsersResponse{Users: make([]User, 0, len(s.users))}
	for _, u := range s.users {
		out.Users = append(out.Users, u)
	}
	sort.Slice(out.Users, func(i, j int) bool { return out.Users[i].ID < out.Users[j].ID })
	out.Count = len(out.Users)
	return out, nil
}

type validateUserResponse struct {
	ID    int64 `json:"id"`
	Valid bool  `json:"valid"`
}

func (s *Service) validateUser(_ *maestro.Request, in userRef) (validateUserResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[in.ID]
	return validateUserResponse{ID: in.ID, Valid: ok}, nil
}
