package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"laju/internal/apperr"
	"laju/internal/events"
	"laju/internal/identity"
	"laju/internal/logger"
	"laju/internal/quote"
	"laju/internal/session"
	"laju/internal/shipment"
	"laju/internal/store"
)

// Authenticator checks operator credentials.
type Authenticator interface {
	FindUser(ctx context.Context, username, password string) (identity.UserRecord, error)
}

// Deps are the collaborators the API is built from. Zero fields get
// in-memory defaults so tests can fill in only what they exercise.
type Deps struct {
	Logger         *zap.Logger
	Engine         quote.Engine
	Users          Authenticator
	Sessions       session.Store
	Shipments      shipment.Store
	Drafts         *shipment.Book
	Resi           *shipment.ResiGenerator
	Events         events.Publisher
	WebhookSecrets map[string]string
	SessionTTL     time.Duration
	Now            func() time.Time
}

type Server struct {
	Deps
	validate *validator.Validate
}

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "laju_session"
)

func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Engine == nil {
		d.Engine = quote.NewStandard()
	}
	if d.Users == nil || d.Shipments == nil {
		mem := store.NewMemory()
		if d.Users == nil {
			d.Users = identity.NewProvider(mem, identity.NewArgon2Hasher(identity.Params{}))
		}
		if d.Shipments == nil {
			d.Shipments = mem
		}
	}
	if d.Sessions == nil {
		d.Sessions = session.NewMemoryStore(d.Now)
	}
	if d.Drafts == nil {
		d.Drafts = shipment.NewBook()
	}
	if d.Resi == nil {
		d.Resi = shipment.NewResiGenerator(d.Now)
	}
	if d.Events == nil {
		d.Events = events.NewLogPublisher(d.Logger)
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = 12 * time.Hour
	}
	s := &Server{Deps: d, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Get("/quotes", s.handleGetQuote)
	r.Post("/webhooks/{source}", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/logout", s.handleLogout)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/shipments/active", s.handleActiveShipments)
		r.Get("/shipments/archive", s.handleArchivedShipments)
		r.Put("/shipments/{resi}/status", s.handleUpdateStatus)
		r.Post("/drafts", s.handleCreateDraft)
		r.Route("/drafts/{resi}", func(r chi.Router) {
			r.Get("/", s.handleGetDraft)
			r.Put("/", s.handleRequote)
			r.Post("/commit", s.handleCommit)
			r.Post("/pay", s.handleMarkPaid)
			r.Post("/print", s.handlePrint)
			r.Get("/label", s.handleLabel)
			r.Get("/barcode", s.handleBarcode)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeErrorJSON writes a standardized JSON error response:
// {"error": {"code": string, "message": string}}
func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// writeError maps domain errors onto the error envelope. Collaborator
// failures are checked first so they never surface as input errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.Logger)
	switch {
	case errors.Is(err, apperr.ErrCollaboratorUnavailable):
		log.Error("collaborator unavailable", zap.Error(err))
		writeErrorJSON(w, http.StatusServiceUnavailable, "collaborator_unavailable", "a backing service is unavailable, try again")
	case errors.Is(err, quote.ErrInvalidInput):
		writeErrorJSON(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, shipment.ErrInvalidTransition):
		writeErrorJSON(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, shipment.ErrDraftNotFound), errors.Is(err, shipment.ErrRecordNotFound):
		writeErrorJSON(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeErrorJSON(w, http.StatusUnauthorized, "unauthorized", "session expired, log in again")
	default:
		log.Error("request failed", zap.Error(err))
		writeErrorJSON(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decodeJSON reads a request body into dst and runs struct validation.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return false
	}
	return s.validStruct(w, dst)
}

func (s *Server) validStruct(w http.ResponseWriter, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, validationMessage(fe))
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid_input", strings.Join(msgs, "; "))
		return false
	}
	writeErrorJSON(w, http.StatusBadRequest, "invalid_input", err.Error())
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionKey
)

// requestIDMiddleware ensures X-Request-ID is set on the response.
// If provided in the request header, it is propagated; otherwise a UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog writes one structured line per request and hands handlers a
// logger carrying the request id.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.Now()
		rid, _ := r.Context().Value(requestIDKey).(string)
		log := s.Logger.With(zap.String("request_id", rid))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), log)))
		log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", s.Now().Sub(start)),
		)
	})
}

// requireSession loads the operator session from the X-Session-ID header or
// the session cookie.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(sessionHeader))
		if id == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				id = strings.TrimSpace(c.Value)
			}
		}
		if id == "" {
			writeErrorJSON(w, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		sess, err := s.Sessions.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) session.Session {
	sess, _ := ctx.Value(sessionKey).(session.Session)
	return sess
}

// publish sends an event; failures are logged and never fail the request.
func (s *Server) publish(r *http.Request, typ string, d shipment.Draft) {
	ev := events.Event{
		Type:       typ,
		Resi:       d.Resi,
		OccurredAt: s.Now().UTC(),
		Data:       d.Record(),
	}
	if err := s.Events.Publish(r.Context(), d.Resi, ev); err != nil {
		logger.FromContext(r.Context(), s.Logger).Warn("publish event failed",
			zap.String("type", typ), zap.String("resi", d.Resi), zap.Error(err))
	}
}
