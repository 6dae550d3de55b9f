package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/internal/pkg/cache"
	"github.com/BizCoreHQ/bizcore/internal/pkg/database"
)

const (
	CacheKeyTenantsTotal        = "statistics:tenants:total"
	CacheKeyTenantsTrial        = "statistics:tenants:trial"
	CacheKeyTenantsActive       = "statistics:tenants:active"
	CacheKeySubscriptionsActive = "statistics:subscriptions:active"
	CacheExpiration             = 30 * time.Minute
)

// RegistryStats holds the aggregate numbers for the operator dashboard.
type RegistryStats struct {
	TotalTenants        int `json:"total_tenants"`
	TrialTenants        int `json:"trial_tenants"`
	ActiveTenants       int `json:"active_tenants"`
	ActiveSubscriptions int `json:"active_subscriptions"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cached aggregates are stale.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached aggregates when they are stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all aggregates and stores them in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalTenants int64
	if err := db.Model(&models.Tenant{}).Count(&totalTenants).Error; err != nil {
		log.Printf("Error counting tenants: %v", err)
		return err
	}

	var trialTenants int64
	if err := db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusTrial).Count(&trialTenants).Error; err != nil {
		log.Printf("Error counting trial tenants: %v", err)
		return err
	}

	var activeTenants int64
	if err := db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusActive).Count(&activeTenants).Error; err != nil {
		log.Printf("Error counting active tenants: %v", err)
		return err
	}

	var activeSubs int64
	if err := db.Model(&models.Subscription{}).Where("status = ?", models.SubscriptionStatusActive).Count(&activeSubs).Error; err != nil {
		log.Printf("Error counting active subscriptions: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyTenantsTotal, strconv.FormatInt(totalTenants, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyTenantsTrial, strconv.FormatInt(trialTenants, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyTenantsActive, strconv.FormatInt(activeTenants, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeySubscriptionsActive, strconv.FormatInt(activeSubs, 10), CacheExpiration); err != nil {
		return err
	}

	return nil
}

func cachedCount(key string, compute func() (int64, error)) int {
	val, err := cache.Get(key)
	if err != nil {
		count, cerr := compute()
		if cerr != nil {
			log.Printf("Error computing statistic %s: %v", key, cerr)
			return 0
		}

		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching statistic %s: %v", key, err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all aggregates, refreshing the cache when stale.
func GetStatisticsData() RegistryStats {
	UpdateCacheIfNeeded()

	db := database.GetDB()

	return RegistryStats{
		TotalTenants: cachedCount(CacheKeyTenantsTotal, func() (int64, error) {
			var n int64
			err := db.Model(&models.Tenant{}).Count(&n).Error
			return n, err
		}),
		TrialTenants: cachedCount(CacheKeyTenantsTrial, func() (int64, error) {
			var n int64
			err := db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusTrial).Count(&n).Error
			return n, err
		}),
		ActiveTenants: cachedCount(CacheKeyTenantsActive, func() (int64, error) {
			var n int64
			err := db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusActive).Count(&n).Error
			return n, err
		}),
		ActiveSubscriptions: cachedCount(CacheKeySubscriptionsActive, func() (int64, error) {
			var n int64
			err := db.Model(&models.Subscription{}).Where("status = ?", models.SubscriptionStatusActive).Count(&n).Error
			return n, err
		}),
	}
}
