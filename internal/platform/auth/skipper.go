package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths reachable without a session: health
// checks and the sign-in and password reset endpoints.
var publicPaths = map[string]bool{
	"/health":                     true,
	"/health/db":                  true,
	"/api/v1/auth/signin":         true,
	"/api/v1/auth/reset":          true,
	"/api/v1/auth/reset/complete": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass it as the Skipper on JWTConfig.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is served without a session.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
