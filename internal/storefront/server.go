// Package storefront exposes the customer facing API: catalog, session
// carts, travel estimates, checkout and the payment webhook.
package storefront

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/checkout"
	"github.com/joao-fontenele/rentalflow/internal/domain"
	"github.com/joao-fontenele/rentalflow/internal/travel"
)

type CartRepository interface {
	Load(ctx context.Context, sessionID string) (*cart.Store, error)
	Update(ctx context.Context, sessionID string, fn func(*cart.Store) error) (*cart.Store, error)
	Delete(ctx context.Context, sessionID string) error
}

type Catalog interface {
	Product(id string) (domain.Product, bool)
	Visible() []domain.Product
}

type CartGate interface {
	Add(ctx context.Context, store *cart.Store, line domain.CartLine) error
	Reschedule(ctx context.Context, store *cart.Store, productID string, oldStart, newStart, newEnd domain.Date) (bool, error)
}

type Estimator interface {
	Estimate(ctx context.Context, address string) (*travel.Quote, error)
}

type Checkouter interface {
	Checkout(ctx context.Context, customer domain.Customer, lines []domain.CartLine) (*checkout.Result, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Dependencies groups the collaborators of a Server. Publisher may be nil.
type Dependencies struct {
	Carts         CartRepository
	Catalog       Catalog
	Gate          CartGate
	Estimator     Estimator
	Checkout      Checkouter
	Orders        OrderStore
	Publisher     Publisher
	WebhookSecret string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type Server struct {
	deps   Dependencies
	logger *slog.Logger
}

func NewServer(deps Dependencies, logger *slog.Logger) *Server {
	return &Server{deps: deps, logger: logger}
}

// Routes builds the router. requestTimeout bounds every request except the
// webhook, which must always be answered.
func (s *Server) Routes(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments/webhook", s.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/products", s.HandleProducts)
			r.Post("/travel/estimate", s.HandleTravelEstimate)

			r.Group(func(r chi.Router) {
				r.Use(s.sessionMiddleware)
				r.Get("/cart", s.HandleGetCart)
				r.Delete("/cart", s.HandleClearCart)
				r.Post("/cart/lines", s.HandleAddLine)
				r.Patch("/cart/lines", s.HandleSetQuantity)
				r.Delete("/cart/lines", s.HandleRemoveLine)
				r.Post("/cart/lines/reschedule", s.HandleReschedule)
				r.Post("/checkout", s.HandleCheckout)
			})
		})
	})

	return r
}

func (s *Server) HandleProducts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Catalog.Visible())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
