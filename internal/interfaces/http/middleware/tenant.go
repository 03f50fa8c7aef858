// Package middleware holds the gin middleware chain: tenant scoping,
// request logging, and HTTP metrics.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// tenantContextKey is the gin context key the tenant ID is stored under.
const tenantContextKey = "tenant_id"

// Tenant extracts the tenant ID from the configured header and aborts
// requests that lack one.  Tenant identity is established upstream; the
// engine only scopes by it.
func Tenant(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(header)
		if tenant == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    errors.CodeUnauthorized.String(),
				"message": "missing tenant header " + header,
			})
			return
		}
		c.Set(tenantContextKey, common.TenantID(tenant))
		c.Next()
	}
}

// TenantFrom returns the tenant ID set by the Tenant middleware.
func TenantFrom(c *gin.Context) common.TenantID {
	if v, ok := c.Get(tenantContextKey); ok {
		if id, ok := v.(common.TenantID); ok {
			return id
		}
	}
	return ""
}
