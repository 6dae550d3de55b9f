package middleware

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/internal/pkg/cache"
)

// TenantCache is a short-lived cache of tenant rows in front of the
// registry. Staleness within the TTL is acceptable: billing state is
// soft-real-time, a request in the window between a scheduler transition and
// cache expiry may observe the pre-transition status.
type TenantCache interface {
	Get(tenantID uint) (*models.Tenant, bool)
	Set(tenant *models.Tenant)
	Invalidate(tenantID uint)
}

const tenantCacheTTL = 30 * time.Second

// redisTenantCache backs TenantCache with the shared Redis client.
type redisTenantCache struct{}

// NewRedisTenantCache returns a TenantCache using the process cache client.
func NewRedisTenantCache() TenantCache {
	return &redisTenantCache{}
}

func tenantCacheKey(tenantID uint) string {
	return fmt.Sprintf("tenant:%d", tenantID)
}

func (rc *redisTenantCache) Get(tenantID uint) (*models.Tenant, bool) {
	raw, err := cache.Get(tenantCacheKey(tenantID))
	if err != nil {
		return nil, false
	}
	var tenant models.Tenant
	if err := json.Unmarshal([]byte(raw), &tenant); err != nil {
		return nil, false
	}
	return &tenant, true
}

func (rc *redisTenantCache) Set(tenant *models.Tenant) {
	raw, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	// Best-effort; a cache miss just means a registry read.
	_ = cache.Set(tenantCacheKey(tenant.ID), string(raw), tenantCacheTTL)
}

func (rc *redisTenantCache) Invalidate(tenantID uint) {
	_ = cache.Delete(tenantCacheKey(tenantID))
}
