package provisioner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/BizCoreHQ/bizcore/app/models"
)

const databasePrefix = "biz_"

// Config carries the credentials the provisioner works with: an admin
// account that may create databases and grant privileges, and the runtime
// application account that receives rights on each tenant database. The
// runtime account is never granted anything on *.*.
type Config struct {
	Host          string
	Port          string
	AdminUser     string
	AdminPassword string
	AppUser       string
}

// Provisioner creates and drops physical tenant databases. Every step is
// individually idempotent, so a crash or timeout mid-procedure is recovered
// by re-invoking Provision with the same slug.
type Provisioner struct {
	cfg Config
}

func New(cfg Config) *Provisioner {
	return &Provisioner{cfg: cfg}
}

// DatabaseName computes the deterministic database name for a slug. Same
// input, same name, always — this is what makes retries safe.
func DatabaseName(slug string) (string, error) {
	if !models.ValidSlug(slug) {
		return "", ErrInvalidSlug
	}
	return databasePrefix + slug, nil
}

// Provision runs the full procedure: create-if-absent the database with a
// fixed encoding, grant the runtime account rights on it, then execute the
// tenant schema batch. No rollback on failure; leftover state is reconciled
// by the IF NOT EXISTS semantics of the next attempt.
func (p *Provisioner) Provision(ctx context.Context, slug string) (string, error) {
	dbName, err := DatabaseName(slug)
	if err != nil {
		return "", err
	}

	admin, err := p.connect(ctx, "")
	if err != nil {
		return "", err
	}
	defer admin.Close()

	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", dbName),
		// Identifiers cannot be parameterized; dbName is derived from an
		// allow-listed slug and AppUser comes from deploy configuration.
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", dbName, p.cfg.AppUser),
		"FLUSH PRIVILEGES",
	}
	for _, stmt := range stmts {
		if _, err := admin.ExecContext(ctx, stmt); err != nil {
			if databaseExists(err) {
				continue
			}
			return "", fmt.Errorf("provision %s: %w", dbName, classify(err))
		}
	}

	// Reconnect scoped to the new database for the schema batch.
	scoped, err := p.connect(ctx, dbName)
	if err != nil {
		return "", err
	}
	defer scoped.Close()

	for _, ddl := range tenantSchema {
		if _, err := scoped.ExecContext(ctx, ddl); err != nil {
			return "", fmt.Errorf("provision %s schema: %w", dbName, classify(err))
		}
	}

	return dbName, nil
}

// Deprovision drops the physical database. Called only after the tenant row
// is already gone from the registry; best-effort, failures are logged by the
// caller and not retried automatically.
func (p *Provisioner) Deprovision(ctx context.Context, databaseName string) error {
	admin, err := p.connect(ctx, "")
	if err != nil {
		return err
	}
	defer admin.Close()

	if _, err := admin.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", databaseName)); err != nil {
		return fmt.Errorf("deprovision %s: %w", databaseName, classify(err))
	}
	return nil
}

// connect opens an admin connection; with an empty schema no default
// database is selected.
func (p *Provisioner) connect(ctx context.Context, schema string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&multiStatements=true",
		p.cfg.AdminUser, p.cfg.AdminPassword, p.cfg.Host, p.cfg.Port, schema)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open admin connection: %w", classify(err))
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database server: %w", classify(err))
	}
	return db, nil
}

// Runner executes provisioning asynchronously relative to signup and writes
// the outcome to the tenant's durable provisioning-status field, so the
// Authentication Gateway's routability check is driven by persisted state.
type Runner struct {
	prov    *Provisioner
	tenants TenantStore
}

// TenantStore is the slice of the registry the runner needs.
type TenantStore interface {
	MarkProvisioned(id uint, databaseName string) error
	MarkProvisioningFailed(id uint, reason string) error
}

func NewRunner(prov *Provisioner, tenants TenantStore) *Runner {
	return &Runner{prov: prov, tenants: tenants}
}

// Run provisions the tenant database in the background. Signup does not wait
// on it; the tenant is simply not routable until the status flips.
func (r *Runner) Run(tenantID uint, slug string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		dbName, err := r.prov.Provision(ctx, slug)
		if err != nil {
			log.Errorf("provisioning failed for tenant %d (%s): %v", tenantID, slug, err)
			if markErr := r.tenants.MarkProvisioningFailed(tenantID, err.Error()); markErr != nil {
				log.Errorf("failed to record provisioning failure for tenant %d: %v", tenantID, markErr)
			}
			return
		}

		if err := r.tenants.MarkProvisioned(tenantID, dbName); err != nil {
			log.Errorf("provisioned %s but failed to persist state for tenant %d: %v", dbName, tenantID, err)
			return
		}
		log.Infof("tenant %d provisioned: %s", tenantID, dbName)
	}()
}
