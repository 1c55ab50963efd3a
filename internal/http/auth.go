package http

import (
	"context"
	"net/http"
	"strings"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

type callerKey struct{}

// requireAuth accepts "Authorization: Bearer <token>" and stores the
// caller's user id in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSON(w, r, http.StatusUnauthorized, detail(msgNotAuthenticated))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeJSON(w, r, http.StatusUnauthorized, detail(msgBadToken))
			return
		}
		claims, err := s.deps.Tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			writeError(w, r, auth.ErrInvalidToken)
			return
		}
		callerID, _ := claims.UserID()

		ctx := context.WithValue(r.Context(), callerKey{}, callerID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldCallerID, callerID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(ctx context.Context) int64 {
	id, _ := ctx.Value(callerKey{}).(int64)
	return id
}

// actingUser resolves whose data the request touches. A user_id in the body
// wins over one in the query string.
func (s *Server) actingUser(r *http.Request, bodyUserID string) (core.ActingUser, error) {
	override := bodyUserID
	if strings.TrimSpace(override) == "" {
		override = r.URL.Query().Get("user_id")
	}
	return services.ResolveActingUser(r.Context(), s.deps.Store, callerID(r.Context()), override)
}
