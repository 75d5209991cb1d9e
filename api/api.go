// Package api serves the kiosk and dashboard JSON API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/billbatista/acasinha-chores/category"
	"github.com/billbatista/acasinha-chores/eventlogger"
	"github.com/billbatista/acasinha-chores/household"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/billbatista/acasinha-chores/metrics"
	"github.com/billbatista/acasinha-chores/middleware"
	"github.com/billbatista/acasinha-chores/session"
	"github.com/billbatista/acasinha-chores/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type UserRepository interface {
	Register(ctx context.Context, name, pin string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
	VerifyPIN(hashedPIN, pin string) error
}

type CategoryRepository interface {
	Create(ctx context.Context, name, icon string, kind category.Kind) (*category.Category, error)
	List(ctx context.Context) ([]category.Category, error)
}

type ItemRepository interface {
	Create(ctx context.Context, name, icon string) (*item.Item, error)
	ListWithStock(ctx context.Context) ([]item.WithStock, error)
	SetStock(ctx context.Context, itemID uuid.UUID, level int) (*item.Stock, error)
}

// ActivityLog queues activity events, usually an eventlogger.Worker.
type ActivityLog interface {
	Log(e eventlogger.Event)
}

// Money controls how balances are rendered next to their raw amounts.
type Money struct {
	Currency string
	Decimals int32
}

type Deps struct {
	Household   *household.Service
	Users       UserRepository
	Categories  CategoryRepository
	Items       ItemRepository
	Sessions    session.Repository
	Activity    ActivityLog
	ActivityLog eventlogger.Reader
	Metrics     *metrics.Metrics
	Idempotency middleware.IdempotencyStore
	Money       Money
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type Server struct {
	Deps
}

func New(deps Deps) *Server {
	return &Server{Deps: deps}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Metrics(s.Metrics))
	router.Use(middleware.AuthMiddleware(s.Sessions))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	router.Group(func(r chi.Router) {
		// Replays carry no Set-Cookie, so session routes stay outside.
		if s.Idempotency != nil {
			r.Use(middleware.Idempotency(s.Idempotency))
		}

		r.Get("/users", s.listUsers)
		r.Post("/users", s.registerUser)

		r.Get("/categories", s.listCategories)
		r.Post("/categories", s.createCategory)

		r.Get("/events", s.listEvents)
		r.Post("/events", s.recordEvent)
		r.Get("/events/{id}", s.getEvent)

		r.Get("/ledger", s.listLedger)
		r.Post("/ledger/pay", s.recordSettlement)
		r.Get("/balances", s.listBalances)
		r.Get("/balances/{id}", s.getBalance)

		r.Get("/schedule", s.schedule)
		r.Get("/status_view", s.statusView)

		r.Get("/items", s.listItems)
		r.Post("/items", s.createItem)
		r.Post("/stock", s.setStock)
	})

	router.Post("/session", s.startSession)
	router.Post("/session/logout", s.endSession)
	router.With(middleware.RequireAuth).Get("/session/me", s.currentUser)

	router.Get("/activity", s.listActivity)

	return router
}

func (s *Server) log(r *http.Request, eventType string, data any) {
	if s.Activity == nil {
		return
	}
	opts := []eventlogger.EventOption{
		eventlogger.WithType(eventType),
		eventlogger.WithData(data),
		eventlogger.WithMetadata(map[string]string{"request_id": chimiddleware.GetReqID(r.Context())}),
	}
	if id, ok := middleware.GetUserID(r.Context()); ok {
		opts = append(opts, eventlogger.WithActor(id))
	}
	s.Activity.Log(eventlogger.NewEvent(opts...))
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError answers with err's status. Uncoded errors are logged and
// hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": string(apperr.CodeOf(err))})
}

var errBadJSON = apperr.Validation("invalid JSON body")

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, errBadJSON.Message, err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name + " must be an integer")
	}
	return n, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    session.CookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
}
