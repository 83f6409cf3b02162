package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserKey contextKey = "user"

// SessionUser is the authenticated identity carried in the request context.
type SessionUser struct {
	ID    string
	Email string
	Name  string
}

// UserFrom returns the authenticated user stored by AuthMiddleware.
func UserFrom(ctx context.Context) (SessionUser, bool) {
	u, ok := ctx.Value(UserKey).(SessionUser)
	return u, ok
}

// WithUser returns a context carrying the given user. Exposed for tests and
// for the socket upgrade path, which authenticates via query token.
func WithUser(ctx context.Context, u SessionUser) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// VerifyToken parses and validates a session token, returning the identity
// embedded in its claims.
func VerifyToken(tokenString string) (SessionUser, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			logger.Sugar.Error("JWT_SECRET environment variable not set")
			return nil, fmt.Errorf("server is not configured to validate sessions")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return SessionUser{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return SessionUser{}, fmt.Errorf("could not parse token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return SessionUser{}, fmt.Errorf("sub claim is missing or invalid")
	}
	u := SessionUser{ID: sub}
	if email, ok := claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		u.Name = name
	}
	return u, nil
}

// TokenFromRequest extracts the session token from the "token" cookie, the
// Authorization header, or (for WebSocket upgrades, which cannot set custom
// headers from the browser) a "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
			return
		}

		user, err := VerifyToken(tokenString)
		if err != nil {
			logger.Sugar.Debugf("Rejected session token: %v", err)
			http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
