package tenantdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenFunc constructs a pool for one tenant database. Injectable for tests.
type OpenFunc func(databaseName string) (*gorm.DB, error)

// Config carries the connection parameters shared by every tenant pool.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	// MaxConns bounds each tenant pool. Kept well below the registry pool
	// limit since every tenant gets its own sub-pool.
	MaxConns int
}

type poolEntry struct {
	db        *gorm.DB
	createdAt time.Time
}

// Router maintains the process-wide mapping from tenant database name to a
// live connection pool. Pools are created lazily on first reference and
// reused for the process lifetime; a slow or saturated tenant never consumes
// another tenant's connection budget.
type Router struct {
	mu     sync.RWMutex
	pools  map[string]*poolEntry
	openFn OpenFunc
}

// NewRouter creates a pool router opening real MySQL pools from cfg.
func NewRouter(cfg Config) *Router {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	return &Router{
		pools:  make(map[string]*poolEntry),
		openFn: mysqlOpener(cfg),
	}
}

// NewRouterWithOpener creates a pool router with a custom pool constructor.
func NewRouterWithOpener(openFn OpenFunc) *Router {
	return &Router{
		pools:  make(map[string]*poolEntry),
		openFn: openFn,
	}
}

func mysqlOpener(cfg Config) OpenFunc {
	return func(databaseName string) (*gorm.DB, error) {
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, databaseName)

		db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open tenant pool %s: %w", databaseName, err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("unwrap tenant pool %s: %w", databaseName, err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)

		return db, nil
	}
}

// Get returns the pool for the given database name, constructing it on first
// reference. Concurrent first access for the same name yields exactly one
// live pool: the loser's redundant pool is closed, not leaked. The pool
// itself fails lazily on first real query if the database is unreachable.
func (r *Router) Get(databaseName string) (*gorm.DB, error) {
	r.mu.RLock()
	entry, ok := r.pools[databaseName]
	r.mu.RUnlock()
	if ok {
		return entry.db, nil
	}

	// Construct outside the write lock so a slow dial does not block lookups
	// for other tenants.
	db, err := r.openFn(databaseName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.pools[databaseName]; ok {
		r.mu.Unlock()
		closePool(db)
		return existing.db, nil
	}
	r.pools[databaseName] = &poolEntry{db: db, createdAt: time.Now()}
	r.mu.Unlock()

	return db, nil
}

// Close tears down the pool for one database name, used when a tenant is
// deleted. Safe to call concurrently with Get; the mapping never points at a
// closed pool.
func (r *Router) Close(databaseName string) error {
	r.mu.Lock()
	entry, ok := r.pools[databaseName]
	delete(r.pools, databaseName)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return closePool(entry.db)
}

// CloseAll tears down every pool, used at process shutdown.
func (r *Router) CloseAll() {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*poolEntry)
	r.mu.Unlock()

	for name, entry := range pools {
		if err := closePool(entry.db); err != nil {
			log.Errorf("failed to close tenant pool %s: %v", name, err)
		}
	}
}

// Size returns the number of live pools.
func (r *Router) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

func closePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
