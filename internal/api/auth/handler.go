package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/metrics"
	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/storage"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

// ErrInvalidCredentials is returned when email or password do not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Handler handles login, registration, logout and relay tickets.
type Handler struct {
	users         storage.UserRepository
	sessions      session.Store
	lockout       *LockoutTracker
	tickets       *TicketService
	superuser     *Superuser
	secureCookies bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithSuperuser enables the configured superuser account.
func WithSuperuser(su *Superuser) Option {
	return func(h *Handler) { h.superuser = su }
}

// WithSecureCookies marks session cookies Secure even for plain HTTP
// requests, for deployments behind a TLS-terminating proxy.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) { h.secureCookies = secure }
}

// NewHandler creates a new auth handler.
func NewHandler(users storage.UserRepository, sessions session.Store, lockout *LockoutTracker, tickets *TicketService, opts ...Option) *Handler {
	h := &Handler{
		users:    users,
		sessions: sessions,
		lockout:  lockout,
		tickets:  tickets,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Response helpers (local to avoid import cycle with api package)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(r.Context()).Warnw("json encode error", "error", err)
	}
}

func jsonError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, dataResponse{Data: data})
}

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeUnauthorized     = "UNAUTHORIZED"
	errCodeConflict         = "CONFLICT"
	errCodeAccountLocked    = "ACCOUNT_LOCKED"
	errCodeInternalError    = "INTERNAL_ERROR"
)

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=100"`
}

// LoginResponse is the flat body returned by login and register.
type LoginResponse struct {
	Success bool             `json:"success"`
	User    models.Principal `json:"user"`
}

// TicketResponse carries a relay ticket.
type TicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// Login checks credentials and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "email and password required")
		return
	}

	if h.lockout.IsLocked(email) {
		remaining := h.lockout.RemainingLockoutTime(email)
		logger.Warnw("login blocked: account locked", "email", email, "remaining", remaining)
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		jsonError(w, r, http.StatusTooManyRequests, errCodeAccountLocked, "account temporarily locked due to too many failed attempts")
		return
	}

	principal, err := h.authenticate(r, email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		h.lockout.RecordFailure(email)
		logger.Infow("login failed", "email", email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		jsonError(w, r, http.StatusUnauthorized, errCodeUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		logger.Errorw("login error", "email", email, "error", err)
		metrics.AuthAttemptsTotal.WithLabelValues("error").Inc()
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.lockout.ClearFailures(email)
	if !h.startSession(w, r, principal) {
		return
	}

	logger.Infow("login success", "email", email, "superuser", principal.Superuser)
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	writeJSON(w, r, http.StatusOK, LoginResponse{Success: true, User: principal})
}

func (h *Handler) authenticate(r *http.Request, email, password string) (models.Principal, error) {
	if h.superuser.Matches(email) {
		if h.superuser.Authenticate(email, password) {
			return h.superuser.Principal(), nil
		}
		return models.Principal{}, ErrInvalidCredentials
	}

	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		return models.Principal{}, err
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return models.Principal{}, ErrInvalidCredentials
	}
	return models.Principal{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// Register creates a user account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	req.Email = models.NormalizeEmail(req.Email)

	if err := models.ValidateStruct(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidatePassword(req.Password); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	if h.superuser.Matches(req.Email) {
		jsonError(w, r, http.StatusConflict, errCodeConflict, "email already registered")
		return
	}
	existing, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		logger.Errorw("register error: get user", "error", err)
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, r, http.StatusConflict, errCodeConflict, "email already registered")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		logger.Errorw("register error", "error", err)
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	user := models.NewUser(req.Email, req.Name)
	user.ID = uuid.NewString()
	user.PasswordHash = hash
	if err := h.users.Create(ctx, user); err != nil {
		logger.Errorw("register error: create user", "error", err)
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	principal := models.Principal{UserID: user.ID, Email: user.Email, Name: user.Name}
	if !h.startSession(w, r, principal) {
		return
	}

	logger.Infow("user registered", "email", user.Email)
	writeJSON(w, r, http.StatusCreated, LoginResponse{Success: true, User: principal})
}

// Logout ends the session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := session.FromRequest(h.sessions, r); ok {
		h.sessions.Delete(s.ID)
		logging.From(r.Context()).Infow("logout", "email", s.Email)
	}
	session.ClearCookie(w, h.secure(r))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := session.FromRequest(h.sessions, r)
	if !ok {
		jsonError(w, r, http.StatusUnauthorized, errCodeUnauthorized, "not logged in")
		return
	}
	jsonOK(w, r, s.Principal())
}

// Ticket issues a short-lived relay ticket for the caller.
func (h *Handler) Ticket(w http.ResponseWriter, r *http.Request) {
	s, ok := session.FromRequest(h.sessions, r)
	if !ok {
		jsonError(w, r, http.StatusUnauthorized, errCodeUnauthorized, "not logged in")
		return
	}

	ticket, err := h.tickets.Issue(s.Principal())
	if err != nil {
		logging.From(r.Context()).Errorw("issue relay ticket", "error", err)
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	metrics.AuthTicketsIssued.Inc()

	jsonOK(w, r, TicketResponse{
		Ticket:    ticket,
		ExpiresIn: int(h.tickets.TTL().Seconds()),
	})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, p models.Principal) bool {
	s, err := h.sessions.Create(p.UserID, p.Email, p.Name, p.Superuser)
	if err != nil {
		logging.From(r.Context()).Errorw("create session", "error", err)
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return false
	}
	session.SetCookie(w, s, h.secure(r))
	return true
}

func (h *Handler) secure(r *http.Request) bool {
	return h.secureCookies || r.TLS != nil
}
