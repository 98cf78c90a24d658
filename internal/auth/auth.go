package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/starteducation/starteducation/internal/httputil"
)

type contextKey string

const userIDKey contextKey = "userID"

// SessionCookieName carries the access token for server-rendered pages.
const SessionCookieName = "se_session"

var (
	errNoCredentials = errors.New("no credentials")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errTokenType     = errors.New("invalid token type")
)

type Authenticator struct {
	jwtSecret string
}

func NewAuthenticator(jwtSecret string) *Authenticator {
	return &Authenticator{jwtSecret: jwtSecret}
}

// Middleware rejects requests without a valid access token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			switch {
			case errors.Is(err, errNoCredentials):
				httputil.WriteError(w, http.StatusUnauthorized, "authorization required")
			case errors.Is(err, errHeaderFormat):
				httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
			case errors.Is(err, errTokenType):
				httputil.WriteError(w, http.StatusUnauthorized, "invalid token type")
			default:
				httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

// Optional attaches the user when a valid token is present and lets every
// request through; downstream handlers decide what an anonymous visitor sees.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, err := a.authenticate(r); err == nil {
			r = r.WithContext(ContextWithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	tokenStr, err := tokenFromRequest(r)
	if err != nil {
		return "", err
	}

	claims, err := ValidateToken(a.jwtSecret, tokenStr)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenTypeAccess {
		return "", errTokenType
	}
	return claims.UserID, nil
}

func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			return "", errHeaderFormat
		}
		return tokenStr, nil
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errNoCredentials
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
