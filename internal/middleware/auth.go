package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zhouzirui/chatdesk/internal/service/account"
	"github.com/zhouzirui/chatdesk/pkg/utils"
)

type contextKey struct{}

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (account.User, error)
}

// Bearer rejects requests without a valid "Authorization: Bearer" header and
// stores the resolved user in the request context.
func Bearer(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				utils.RespondError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// UserFrom returns the user stored by Bearer.
func UserFrom(ctx context.Context) (account.User, bool) {
	user, ok := ctx.Value(contextKey{}).(account.User)
	return user, ok
}
