package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// TokenHeader is the fallback header carrying a raw session token for
// clients that cannot set Authorization.
const TokenHeader = "token"

// TokenFromRequest returns the session token presented with the request.
// "Authorization: Bearer <token>" wins over the token header. An empty
// string means no token was sent.
func TokenFromRequest(c echo.Context) string {
	h := c.Request().Header
	if auth := h.Get(echo.HeaderAuthorization); auth != "" {
		scheme, rest, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(h.Get(TokenHeader))
}
