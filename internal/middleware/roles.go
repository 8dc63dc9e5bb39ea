package middleware

import (
	"net/http"

	"scouthub/internal/response"
	"scouthub/internal/tenancy"
	"scouthub/pkg/logger"
	"scouthub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequireRoles guards a route group behind a role check within the resolved
// organization. Routes with an ownership channel call tenancy.Authorize in
// their handler instead, passing the resource check.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc, _ := tenancy.FromContext(c)
			decision := tenancy.Authorize(rc, roles, nil)
			if !decision.Allowed {
				logger.FromContext(c).Warn("access denied",
					zap.String("path", c.Request().URL.Path),
					zap.String("reason", string(decision.Reason)))
				prometheus.RecordRejection("access_denied")
				if decision.Reason == tenancy.DenialNoIdentity {
					return response.Fail(c, http.StatusUnauthorized, "authentication required")
				}
				return response.Fail(c, http.StatusForbidden, "access denied")
			}
			return next(c)
		}
	}
}
