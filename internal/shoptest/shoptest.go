// Package shoptest provides an in-process fake of the order API for tests.
package shoptest

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/studiowebux/orderstress/internal/types"
)

const sessionCookie = "sid"

// Catalogue is the fixed product list served by the fake
var Catalogue = []types.Product{
	{ID: 1, Name: "Wireless Mouse", Price: 29.99},
	{ID: 2, Name: "Mechanical Keyboard", Price: 79.99},
	{ID: 3, Name: "Noise Cancelling Headphones", Price: 129.99},
	{ID: 4, Name: "USB-C Hub", Price: 49.99},
	{ID: 5, Name: "Portable SSD", Price: 99.99},
}

type account struct {
	user     types.User
	password string
	orders   []types.StoredOrder
}

// Server is a fake order API
type Server struct {
	*httptest.Server

	// RequireSession makes /api/order answer 401 without a session cookie
	RequireSession bool
	// OrderDelay is slept before answering an order
	OrderDelay time.Duration
	// SessionStatus, when set, is the status /api/session fails with
	SessionStatus atomic.Int64

	mu       sync.Mutex
	accounts map[string]*account // by email
	sessions map[string]string   // sid -> email
	nextID   int64

	OrderCalls  atomic.Int64
	SignupCalls atomic.Int64
	DeleteCalls atomic.Int64
	inFlight    atomic.Int64
	MaxInFlight atomic.Int64
}

// NewServer starts a fake order API
func NewServer() *Server {
	s := &Server{
		accounts: map[string]*account{},
		sessions: map[string]string{},
		nextID:   1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", s.products)
	mux.HandleFunc("POST /api/order", s.order)
	mux.HandleFunc("GET /api/orders", s.listOrders)
	mux.HandleFunc("POST /api/signup", s.signup)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/session", s.session)
	mux.HandleFunc("DELETE /api/account", s.deleteAccount)
	mux.HandleFunc("POST /api/logout", s.logout)

	s.Server = httptest.NewServer(mux)
	return s
}

// Accounts returns the number of registered accounts
func (s *Server) Accounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.APIError{Success: false, Error: msg})
}

func (s *Server) current(r *http.Request) *account {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.sessions[c.Value]
	if !ok {
		return nil
	}
	return s.accounts[email]
}

func (s *Server) openSession(w http.ResponseWriter, email string) {
	sid := uuid.NewString()
	s.sessions[sid] = email
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
}

func (s *Server) products(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Catalogue)
}

func (s *Server) order(w http.ResponseWriter, r *http.Request) {
	s.OrderCalls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.MaxInFlight.Load()
		if n <= peak || s.MaxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if s.OrderDelay > 0 {
		select {
		case <-time.After(s.OrderDelay):
		case <-r.Context().Done():
			return
		}
	}

	acct := s.current(r)
	if s.RequireSession && acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var items []struct {
		ID       int         `json:"id"`
		Quantity interface{} `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil || len(items) == 0 {
		fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	total := 0.0
	order := types.Order{}
	for _, item := range items {
		var product *types.Product
		for i := range Catalogue {
			if Catalogue[i].ID == item.ID {
				product = &Catalogue[i]
			}
		}
		if product == nil {
			fail(w, http.StatusBadRequest, fmt.Sprintf("Unknown product id %d", item.ID))
			return
		}
		qty, ok := integerQuantity(item.Quantity)
		if !ok || qty <= 0 {
			fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid quantity for product %d", item.ID))
			return
		}
		total += product.Price * float64(qty)
		order = append(order, types.OrderItem{ID: item.ID, Quantity: qty})
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if acct != nil {
		acct.orders = append(acct.orders, types.StoredOrder{
			ID:    types.ID(strconv.FormatInt(id, 10)),
			Items: order,
			Total: total,
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, types.OrderResponse{Success: true, OrderID: id, Total: total})
}

// integerQuantity coerces a JSON quantity to a number and accepts it only
// when that number is an integer: "2" is 2, 1.5 and "abc" are rejected
func integerQuantity(v interface{}) (int, bool) {
	var f float64
	switch q := v.(type) {
	case float64:
		f = q
	case string:
		if t := strings.TrimSpace(q); t != "" {
			parsed, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return 0, false
			}
			f = parsed
		}
	case bool:
		if q {
			f = 1
		}
	case nil:
	default:
		return 0, false
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	s.mu.Lock()
	orders := append([]types.StoredOrder{}, acct.orders...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	s.SignupCalls.Add(1)
	var creds types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if creds.Username == "" || creds.Email == "" || len(creds.Password) < 6 {
		fail(w, http.StatusBadRequest, "Username, email and a password of at least 6 characters are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[creds.Email]; exists {
		fail(w, http.StatusConflict, "Email already registered")
		return
	}
	s.nextID++
	acct := &account{
		user:     types.User{ID: types.ID(strconv.FormatInt(s.nextID, 10)), Username: creds.Username, Email: creds.Email},
		password: creds.Password,
	}
	s.accounts[creds.Email] = acct
	s.openSession(w, creds.Email)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": acct.user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[creds.Email]
	if !ok || acct.password != creds.Password {
		fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.openSession(w, creds.Email)
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": acct.user})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	if status := s.SessionStatus.Load(); status != 0 {
		fail(w, int(status), "Session store unavailable")
		return
	}
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Not signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": acct.user})
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	s.DeleteCalls.Add(1)
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != acct.password {
		fail(w, http.StatusForbidden, "Incorrect password")
		return
	}

	s.mu.Lock()
	delete(s.accounts, acct.user.Email)
	for sid, email := range s.sessions {
		if email == acct.user.Email {
			delete(s.sessions, sid)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}
