package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/render"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/metrics"
	"github.com/aquanet/apiserver/types"
)

const (
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
	maxMultipartMemory   = 8 << 20
)

// AuthHandler issues tokens and resolves the caller of protected routes.
type AuthHandler struct {
	authenticator *auth.Authenticator
	tokens        *auth.TokenService
	resolver      *auth.SessionResolver
	metrics       *metrics.Metrics
	log           *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. m may be nil.
func NewAuthHandler(
	authenticator *auth.Authenticator,
	tokens *auth.TokenService,
	resolver *auth.SessionResolver,
	m *metrics.Metrics,
	log *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		tokens:        tokens,
		resolver:      resolver,
		metrics:       m,
		log:           log,
	}
}

// LoginRequest is accepted as JSON or as an OAuth2 password form.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int    `json:"user_id"`
	Username    string `json:"username"`
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.AuthHandler.Login")

	var req LoginRequest
	if err := decodeLogin(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation failed",
			Code:   CodeValidation,
			Fields: missingCredentials(req),
		})
		return
	}

	ctx := auth.WithClientAddr(r.Context(), ClientIP(r))
	user, err := h.authenticator.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTooManyAttempts):
			h.metrics.AuthOutcome(metrics.OutcomeThrottled)
			log.Warn("login throttled", slog.String("username", req.Username))
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.metrics.AuthOutcome(metrics.OutcomeBadCredentials)
			log.Info("login rejected", slog.String("username", req.Username))
		}
		writeServiceError(w, r, log, err)
		return
	}

	token, _, err := h.tokens.Issue(user.Username, user.ID, 0)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}

	h.metrics.AuthOutcome(metrics.OutcomeLogin)
	log.Info("login succeeded", slog.Int("user_id", user.ID))
	writeJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      user.ID,
		Username:    user.Username,
	})
}

func decodeLogin(r *http.Request, req *LoginRequest) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case contentTypeForm:
		return render.DecodeForm(r.Body, req)
	case contentTypeMultipart:
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return errors.New("invalid form body")
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		return nil
	default:
		return decodeJSON(r, req)
	}
}

func missingCredentials(req LoginRequest) map[string]string {
	fields := map[string]string{}
	if req.Username == "" {
		fields["username"] = "is required"
	}
	if req.Password == "" {
		fields["password"] = "is required"
	}
	return fields
}

// Authenticate resolves the bearer token on every request and stores the
// user in the request context. Failures end the request.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(h.log, r, "handlers.AuthHandler.Authenticate")

		token, err := bearerToken(r)
		if err != nil {
			h.metrics.AuthOutcome(metrics.OutcomeUnauthenticated)
			writeServiceError(w, r, log, auth.ErrUnauthenticated)
			return
		}

		user, err := h.resolver.Resolve(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrAccountDisabled):
				h.metrics.AuthOutcome(metrics.OutcomeDisabled)
			case errors.Is(err, auth.ErrUnauthenticated):
				h.metrics.AuthOutcome(metrics.OutcomeUnauthenticated)
			}
			writeServiceError(w, r, log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// TargetFunc extracts the resource a guard is evaluated against.
type TargetFunc func(r *http.Request) (auth.Resource, error)

// NoTarget is the TargetFunc for routes that only check the caller's role.
func NoTarget(*http.Request) (auth.Resource, error) {
	return auth.Resource{}, nil
}

// TargetUserParam targets the user id found in URL parameter name.
func TargetUserParam(name string) TargetFunc {
	return func(r *http.Request) (auth.Resource, error) {
		id, err := pathID(r, name)
		if err != nil {
			return auth.Resource{}, err
		}
		return auth.Resource{TargetUserID: id}, nil
	}
}

// Require runs guard against the authenticated caller. It must be mounted
// after Authenticate.
func (h *AuthHandler) Require(guard auth.Guard, target TargetFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := requestLog(h.log, r, "handlers.AuthHandler.Require")

			user, ok := UserFromContext(r.Context())
			if !ok {
				writeServiceError(w, r, log, auth.ErrUnauthenticated)
				return
			}
			res, err := target(r)
			if err != nil {
				writeBadRequest(w, r, err)
				return
			}
			if err := guard(user, res); err != nil {
				h.metrics.AuthOutcome(metrics.OutcomeForbidden)
				log.Info("access denied", slog.Int("user_id", user.ID), slog.String("reason", err.Error()))
				writeServiceError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// caller returns the authenticated user. Routes using it sit behind
// Authenticate, so a missing user is a wiring bug reported as 401.
func caller(w http.ResponseWriter, r *http.Request, log *slog.Logger) (types.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, log, auth.ErrUnauthenticated)
	}
	return user, ok
}
