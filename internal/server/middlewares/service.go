package middlewares

import (
	"net/http"
	"strings"

	"github.com/imath/ideastream/internal/server/token"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/middlewarex"
	"github.com/o1egl/paseto/v2"
)

// CurrentServiceContextKey is the key to retrieve the authenticated
// collaborator name from echo.Context.
const CurrentServiceContextKey = "current_service"

// ServiceToken returns an auth middleware validating the PASETO service
// tokens of collaborator applications. It stores the collaborator name into
// echo.Context.
func ServiceToken(secret []byte) echo.MiddlewareFunc {
	check := middlewarex.PASETOWithConfig(middlewarex.PASETOConfig{
		SigningKey: secret,
		Validators: []paseto.Validator{
			paseto.IssuedBy(token.Issuer),
			paseto.ForAudience(token.TypeServiceToken),
		},
	})

	fake := func(echo.Context) error {
		return nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(echo.HeaderAuthorization)
			if bearerToken(authorization) == "" {
				return unauthorized(c)
			}

			if err := check(fake)(c); err != nil {
				return unauthorized(c)
			}

			tk := c.Get(middlewarex.DefaultPASETOConfig.ContextKey).(middlewarex.Token)
			c.Set(CurrentServiceContextKey, tk.Subject)

			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": echo.Map{
			"tag":     "invalid-auth",
			"message": "Invalid service credentials.",
		},
	})
}

func bearerToken(authorization string) string {
	parts := strings.Split(authorization, " ")
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
