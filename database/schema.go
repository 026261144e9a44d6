package database

// The schema sticks to the subset of SQL shared by MySQL and SQLite.
// Timestamps are unix microseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS restaurants (
		id INT NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		owner_id VARCHAR(64) NOT NULL,
		platform_fee DECIMAL(12,2) NOT NULL DEFAULT 0,
		platform_fee_enabled BOOLEAN NOT NULL DEFAULT 0,
		fee_per_km DECIMAL(12,2) NOT NULL DEFAULT 0,
		lat DOUBLE NOT NULL DEFAULT 0,
		lng DOUBLE NOT NULL DEFAULT 0,
		closing_time VARCHAR(5) NOT NULL DEFAULT '',
		timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
		allow_delivery BOOLEAN NOT NULL DEFAULT 1,
		allow_new_orders BOOLEAN NOT NULL DEFAULT 1,
		gcash_number VARCHAR(32) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		kind VARCHAR(16) NOT NULL,
		price DECIMAL(12,2) NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT 1,
		bundle_items TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS menu_variants (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		menu_item_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		available BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS choice_groups (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		menu_item_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		required BOOLEAN NOT NULL DEFAULT 0,
		max_selections INT NOT NULL DEFAULT 0,
		sort_order INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS choices (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		group_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT 1,
		sort_order INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS vouchers (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		code VARCHAR(64) NOT NULL UNIQUE,
		voucher_type VARCHAR(16) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		max_discount DECIMAL(12,2) NULL,
		min_order_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		usage_limit INT NOT NULL DEFAULT 0,
		usage_count INT NOT NULL DEFAULT 0,
		expires_at BIGINT NULL,
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		customer_id VARCHAR(64) NOT NULL,
		customer_name VARCHAR(255) NOT NULL,
		customer_gcash_number VARCHAR(32) NOT NULL,
		order_type VARCHAR(16) NOT NULL,
		pre_order_fulfillment VARCHAR(16) NOT NULL,
		pre_order_scheduled_at BIGINT NULL,
		status VARCHAR(32) NOT NULL,
		denial_reason TEXT NOT NULL,
		accepted_at BIGINT NULL,
		finalized_at BIGINT NULL,
		items TEXT NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		platform_fee DECIMAL(12,2) NOT NULL,
		delivery_fee DECIMAL(12,2) NOT NULL,
		discount DECIMAL(12,2) NOT NULL,
		total DECIMAL(12,2) NOT NULL,
		voucher_code VARCHAR(64) NOT NULL,
		payment_plan VARCHAR(16) NOT NULL,
		payment_proof_url TEXT NOT NULL,
		downpayment_amount DECIMAL(12,2) NOT NULL,
		downpayment_proof_url TEXT NOT NULL,
		remaining_payment_method VARCHAR(32) NOT NULL,
		remaining_payment_proof_url TEXT NOT NULL,
		customer_address TEXT NOT NULL,
		customer_lat DOUBLE NULL,
		customer_lng DOUBLE NULL,
		distance_meters DOUBLE NULL,
		delivery_fee_fallback BOOLEAN NOT NULL DEFAULT 0,
		allow_chat BOOLEAN NOT NULL DEFAULT 1,
		allow_customer_images BOOLEAN NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_modifications (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		order_id VARCHAR(64) NOT NULL,
		modified_by VARCHAR(64) NOT NULL,
		modified_by_name VARCHAR(255) NOT NULL,
		modification_type VARCHAR(32) NOT NULL,
		previous_value TEXT NOT NULL,
		new_value TEXT NOT NULL,
		item_details TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		order_id VARCHAR(64) NOT NULL,
		sender_id VARCHAR(64) NOT NULL,
		sender_name VARCHAR(255) NOT NULL,
		sender_role VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		image_url TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS read_cursors (
		order_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		last_read_at BIGINT NOT NULL,
		PRIMARY KEY (order_id, user_id)
	)`,
}

type index struct {
	name, table, columns string
}

var indexes = []index{
	{"idx_orders_customer", "orders", "customer_id, created_at"},
	{"idx_orders_status", "orders", "status"},
	{"idx_modifications_order", "order_modifications", "order_id, created_at"},
	{"idx_messages_order", "chat_messages", "order_id, created_at"},
	{"idx_variants_item", "menu_variants", "menu_item_id"},
	{"idx_groups_item", "choice_groups", "menu_item_id"},
	{"idx_choices_group", "choices", "group_id"},
}
