package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest      = "bad_request"
	CodeValidation      = "validation_error"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeUnauthenticated = "unauthenticated"
	CodeAccountDisabled = "account_disabled"
	CodeForbidden       = "forbidden"
	CodeTooManyAttempts = "too_many_attempts"
	CodeTooManyRequests = "too_many_requests"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

const (
	headerAuthenticate  = "WWW-Authenticate"
	headerAuthorization = "Authorization"
	bearerChallenge     = "Bearer"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// MessageResponse acknowledges operations that return no entity.
type MessageResponse struct {
	Message string `json:"message"`
	Count   *int64 `json:"count,omitempty"`
}

// UserFromContext returns the user resolved by Authenticate.
func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, value any) {
	render.Status(r, status)
	render.JSON(w, r, value)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set(headerAuthenticate, bearerChallenge)
	}
	writeJSON(w, r, status, ErrorResponse{Error: message, Code: code})
}

// writeServiceError maps an error returned by a service to its HTTP reply.
// Unknown errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		verrs    validator.ValidationErrors
		conflict *store.ConflictError
		denied   *auth.ForbiddenError
		badBody  *bodyError
	)
	switch {
	case errors.As(err, &badBody):
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, badBody.Error())
	case errors.As(err, &verrs):
		writeJSON(w, r, http.StatusUnprocessableEntity, validationResponse(verrs))
	case errors.Is(err, auth.ErrInvalidInput):
		writeJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation failed",
			Code:   CodeValidation,
			Fields: map[string]string{"password": "must not be empty"},
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, CodeNotFound, notFoundMessage(err))
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(w, r, http.StatusBadRequest, CodeConflict, "username already registered")
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, r, http.StatusBadRequest, CodeConflict, "email already registered")
	case errors.As(err, &conflict):
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:  conflict.Error(),
			Code:   CodeConflict,
			Fields: conflictFields(conflict),
		})
	case errors.Is(err, store.ErrConflict):
		writeError(w, r, http.StatusBadRequest, CodeConflict, "conflicting record")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthenticated, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthenticated, auth.ErrUnauthenticated.Error())
	case errors.Is(err, auth.ErrAccountDisabled):
		writeError(w, r, http.StatusBadRequest, CodeAccountDisabled, auth.ErrAccountDisabled.Error())
	case errors.As(err, &denied):
		writeError(w, r, http.StatusForbidden, CodeForbidden, denied.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, CodeForbidden, auth.ErrForbidden.Error())
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeError(w, r, http.StatusTooManyRequests, CodeTooManyAttempts, auth.ErrTooManyAttempts.Error())
	case errors.Is(err, services.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "feature not configured")
	default:
		log.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// notFoundMessage keeps the "<what> <id>" prefix added by services.
func notFoundMessage(err error) string {
	msg := err.Error()
	if msg == store.ErrNotFound.Error() {
		return "resource not found"
	}
	return msg
}

func conflictFields(err *store.ConflictError) map[string]string {
	if err.Field == "" {
		return nil
	}
	if err.Referenced {
		return map[string]string{err.Field: "is still referenced or points to a missing record"}
	}
	return map[string]string{err.Field: "already exists"}
}

func validationResponse(errs validator.ValidationErrors) ErrorResponse {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return ErrorResponse{Error: "validation failed", Code: CodeValidation, Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gtefield":
		return "must not be before " + fe.Param()
	default:
		return "is not valid"
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
}

// parsePagination reads skip and limit. Missing values default to 0 and
// services.DefaultLimit; limit is capped at services.MaxLimit.
func parsePagination(r *http.Request) (offset, limit int, err error) {
	offset, err = queryInt(r, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	if offset < 0 {
		return 0, 0, errors.New("skip must be >= 0")
	}
	limit, err = queryInt(r, "limit", services.DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 {
		return 0, 0, errors.New("limit must be >= 1")
	}
	offset, limit = services.ClampLimit(offset, limit)
	return offset, limit, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return value, nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(headerAuthorization))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

func requestLog(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// ClientIP is the host part of r.RemoteAddr. Proxy headers only reach it when
// the server mounts middleware.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
