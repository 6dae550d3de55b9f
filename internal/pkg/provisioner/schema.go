package provisioner

// tenantSchema is the full tenant-local DDL batch. Every statement is
// CREATE TABLE IF NOT EXISTS so re-running provisioning after a partial
// failure is a no-op for tables that already exist. The business handlers
// that consume these tables are outside the control plane; they only ever
// see a pool already scoped to one tenant database.
var tenantSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		email VARCHAR(200),
		phone VARCHAR(50),
		address TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		sku VARCHAR(100) NOT NULL,
		name VARCHAR(200) NOT NULL,
		description TEXT,
		unit_price_cents BIGINT NOT NULL DEFAULT 0,
		stock_quantity INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY ux_products_sku (sku)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		invoice_number VARCHAR(50) NOT NULL,
		customer_id BIGINT UNSIGNED,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		issued_on DATE,
		due_on DATE,
		total_cents BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY ux_invoices_number (invoice_number),
		KEY idx_invoices_customer (customer_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS invoice_items (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		invoice_id BIGINT UNSIGNED NOT NULL,
		product_id BIGINT UNSIGNED,
		description VARCHAR(255),
		quantity INT NOT NULL DEFAULT 1,
		unit_price_cents BIGINT NOT NULL DEFAULT 0,
		KEY idx_invoice_items_invoice (invoice_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS employees (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		email VARCHAR(200),
		position VARCHAR(100),
		salary_cents BIGINT NOT NULL DEFAULT 0,
		hired_on DATE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payroll_entries (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		employee_id BIGINT UNSIGNED NOT NULL,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		gross_cents BIGINT NOT NULL DEFAULT 0,
		net_cents BIGINT NOT NULL DEFAULT 0,
		paid_at TIMESTAMP NULL,
		KEY idx_payroll_employee (employee_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		entry_date DATE NOT NULL,
		account VARCHAR(100) NOT NULL,
		description VARCHAR(255),
		debit_cents BIGINT NOT NULL DEFAULT 0,
		credit_cents BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		KEY idx_ledger_date (entry_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cheques (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		cheque_number VARCHAR(50) NOT NULL,
		payee VARCHAR(200),
		amount_cents BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'issued',
		issued_on DATE,
		cleared_on DATE,
		UNIQUE KEY ux_cheques_number (cheque_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		customer_id BIGINT UNSIGNED,
		room VARCHAR(50),
		check_in DATE NOT NULL,
		check_out DATE NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'booked',
		total_cents BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		KEY idx_reservations_customer (customer_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
