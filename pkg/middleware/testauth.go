package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appcontext"
)

// TestAuth middleware extracts tenant_id and user_id from headers when auth is disabled.
// This allows testing the API without a real JWT auth system.
// Headers:
//   - X-Tenant-ID: The tenant ID
//   - X-User-ID: The user ID
//
// WARNING: Only use this when AUTH_ENABLED=false. Do not enable in production.
func TestAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			tenantID := c.Request().Header.Get(HeaderTenantID)
			if tenantID != "" {
				ctx = appcontext.SetTenantID(ctx, tenantID)
			}

			userID := c.Request().Header.Get(HeaderUserID)
			if userID != "" {
				ctx = appcontext.SetUserID(ctx, userID)
			}

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
