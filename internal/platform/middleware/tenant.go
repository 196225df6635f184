package middleware

import "github.com/labstack/echo/v4"

const tenantContextKey = "tenant_id"

// Tenant resolves the caller's tenant from the X-Tenant-ID header, falling
// back to the configured default. Row-level isolation is owned by the
// collaborating persistence layer; here the tenant only scopes lookups.
func Tenant(defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant := c.Request().Header.Get("X-Tenant-ID")
			if tenant == "" {
				tenant = defaultTenant
			}
			c.Set(tenantContextKey, tenant)
			return next(c)
		}
	}
}

// TenantFromContext returns the tenant resolved by the Tenant middleware.
func TenantFromContext(c echo.Context) string {
	tenant, _ := c.Get(tenantContextKey).(string)
	return tenant
}
