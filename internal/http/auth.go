package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/services"
)

type userContextKey struct{}

// requireToken authenticates "Authorization: Bearer <token>" and stores the
// caller in the request context.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="rashody"`)
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.deps.Auth.Authenticate(r.Context(), token)
		if errors.Is(err, services.ErrUnauthorized) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected API token",
				applog.FieldErrorType, applog.ErrorTypeAuth,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="rashody", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if err != nil {
			s.internalError(w, r, "Authentication failed", err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, user.ID)
		next.ServeHTTP(w, r.WithContext(applog.IntoContext(ctx, logger)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// caller returns the authenticated user. Only valid behind requireToken.
func caller(r *http.Request) core.User {
	u, _ := r.Context().Value(userContextKey{}).(core.User)
	return u
}
