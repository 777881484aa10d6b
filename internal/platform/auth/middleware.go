package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the signed-in user as seen by handlers. It travels explicitly
// in the request context.
type Session struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Dashboard Dashboard `json:"dashboard"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Purpose string `json:"purpose,omitempty"`
}

const (
	purposeSession = ""
	purposeReset   = "password_reset"
)

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	TTL        time.Duration
	// Skipper lets public routes through without a token.
	Skipper func(echo.Context) bool
}

func (cfg JWTConfig) parse(tokenStr, purpose string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("token not valid for this use")
	}
	return claims, nil
}

func (cfg JWTConfig) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

// sessionFromClaims rebuilds a session from a verified token.
func sessionFromClaims(claims *Claims, token string) (*Session, error) {
	dash, err := Route(claims.Role)
	if err != nil {
		return nil, err
	}
	s := &Session{
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      claims.Role,
		Dashboard: dash,
		Token:     token,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func bearer(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// JWTMiddleware verifies the bearer token and stores the session in the
// request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			tokenStr, err := bearer(c)
			if err != nil {
				return err
			}
			claims, err := cfg.parse(tokenStr, purposeSession)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			sess, err := sessionFromClaims(claims, tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), sess)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a token run as an admin session; requests with one are verified
// like JWTMiddleware.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		verified := strict(next)
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if c.Request().Header.Get("Authorization") != "" {
				return verified(c)
			}
			sess := &Session{
				UserID:    "dev-user",
				Name:      "Developer",
				Email:     "dev@localhost",
				Role:      RoleAdmin,
				Dashboard: DashboardAdmin,
			}
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), sess)))
			return next(c)
		}
	}
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session of the request, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

func UserIDFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.UserID
	}
	return ""
}

// NameFromContext returns the display name of the signed-in user. Records
// that note who attended a patient use it.
func NameFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.Name
	}
	return ""
}

// RolesFromContext returns the canonical role of the session as a slice.
func RolesFromContext(ctx context.Context) []string {
	s := SessionFromContext(ctx)
	if s == nil {
		return nil
	}
	if r, ok := CanonicalRole(s.Role); ok {
		return []string{r}
	}
	return nil
}
