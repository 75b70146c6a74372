/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements schedule.Store and schedule.CatalogStore using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  schedule.HolidayStore:      Holiday definitions (recurrence stored as JSON)
  schedule.SubscriptionStore: Subscriptions with their holidays and items
  schedule.PlacementStore:    Flag placements with optimistic concurrency
  schedule.CustomerStore:     Notification recipients
  schedule.CatalogStore:      Operator writes for holidays, customers, products

KEY TABLES:
  holidays:               Holiday definitions, unique slug
  customers:              Customer records
  products:               Flag products, decimal price stored as TEXT
  subscriptions:          Paid service windows
  subscription_holidays:  Holidays a subscription selected
  subscription_items:     Products and quantities on a subscription
  flag_placements:        One row per scheduled placement, never deleted

INDEXES:
  - idx_placements_key: UNIQUE(subscription_id, holiday_id, product_id,
    planned_date). The authoritative guard against duplicate placements when
    planners race.
  - idx_placements_date: Crew schedules and reminder scans (hot path)

OPTIMISTIC CONCURRENCY:
  UpdatePlacement is "UPDATE ... WHERE id = ? AND version = ?". Zero rows
  affected on an existing row means another writer won.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/flags.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
  - factory/holiday.go: Recurrence JSON encoding
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/injoimydesign/flag-community/factory"
	"github.com/injoimydesign/flag-community/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ schedule.Store        = (*Store)(nil)
	_ schedule.CatalogStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		recurrence_json TEXT NOT NULL,
		placement_days_before INTEGER NOT NULL DEFAULT 0,
		removal_days_after INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TEXT,
		updated_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_slug
		ON holidays(slug COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		address TEXT,
		created_at TEXT
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size TEXT,
		price TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		renewed_from_id TEXT,
		cancelled_at TEXT,
		created_at TEXT,
		updated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_status
		ON subscriptions(status);

	CREATE TABLE IF NOT EXISTS subscription_holidays (
		subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
		holiday_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (subscription_id, holiday_id)
	);

	CREATE INDEX IF NOT EXISTS idx_subscription_holidays_holiday
		ON subscription_holidays(holiday_id);

	CREATE TABLE IF NOT EXISTS subscription_items (
		subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (subscription_id, position)
	);

	CREATE TABLE IF NOT EXISTS flag_placements (
		id TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL,
		holiday_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		planned_date TEXT NOT NULL,
		placement_date TEXT NOT NULL,
		removal_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		placed_at TEXT,
		placed_by TEXT,
		removed_at TEXT,
		removed_by TEXT,
		skipped_at TEXT,
		skip_reason TEXT,
		reminder_sent_at TEXT,
		notes TEXT,
		site_address TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT,
		updated_at TEXT
	);

	-- CRITICAL: at most one placement per scheduling tuple
	CREATE UNIQUE INDEX IF NOT EXISTS idx_placements_key
		ON flag_placements(subscription_id, holiday_id, product_id, planned_date);

	CREATE INDEX IF NOT EXISTS idx_placements_date
		ON flag_placements(placement_date, status);

	CREATE INDEX IF NOT EXISTS idx_placements_subscription
		ON flag_placements(subscription_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// HOLIDAY STORE
// =============================================================================

const holidayColumns = `id, name, slug, recurrence_json, placement_days_before,
	removal_days_after, active, sort_order, created_at, updated_at`

func (s *Store) SaveHoliday(ctx context.Context, h schedule.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recurrence, err := factory.EncodeRecurrence(h.Recurrence)
	if err != nil {
		return err
	}
	if h.Slug == "" {
		h.Slug = schedule.Slugify(h.Name)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO holidays (`+holidayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			slug = excluded.slug,
			recurrence_json = excluded.recurrence_json,
			placement_days_before = excluded.placement_days_before,
			removal_days_after = excluded.removal_days_after,
			active = excluded.active,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at
	`,
		h.ID, h.Name, h.Slug, string(recurrence), h.PlacementDaysBefore,
		h.RemovalDaysAfter, h.Active, h.SortOrder,
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &schedule.ValidationError{Field: "slug", Reason: "slug already in use"}
		}
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) GetHoliday(ctx context.Context, id schedule.HolidayID) (*schedule.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryHolidays(ctx, "SELECT "+holidayColumns+" FROM holidays WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, schedule.ErrHolidayNotFound
	}
	return &list[0], nil
}

func (s *Store) ListHolidays(ctx context.Context, activeOnly bool) ([]schedule.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + holidayColumns + " FROM holidays"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	return s.queryHolidays(ctx, query+" ORDER BY sort_order ASC, name ASC")
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]schedule.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var out []schedule.Holiday
	for rows.Next() {
		var h schedule.Holiday
		var recurrence string
		var createdAt, updatedAt sql.NullString
		if err := rows.Scan(&h.ID, &h.Name, &h.Slug, &recurrence, &h.PlacementDaysBefore,
			&h.RemovalDaysAfter, &h.Active, &h.SortOrder, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if h.Recurrence, err = factory.DecodeRecurrence([]byte(recurrence)); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		h.CreatedAt = parseTime(createdAt)
		h.UpdatedAt = parseTime(updatedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// CUSTOMER / PRODUCT STORE
// =============================================================================

func (s *Store) SaveCustomer(ctx context.Context, c schedule.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			address = excluded.address
	`, c.ID, c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id schedule.CustomerID) (*schedule.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryCustomers(ctx, "SELECT id, name, email, phone, address, created_at FROM customers WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, schedule.ErrCustomerNotFound
	}
	return &list[0], nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]schedule.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCustomers(ctx, "SELECT id, name, email, phone, address, created_at FROM customers ORDER BY name ASC")
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]schedule.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []schedule.Customer
	for rows.Next() {
		var c schedule.Customer
		var email, phone, address, createdAt sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &email, &phone, &address, &createdAt); err != nil {
			return nil, err
		}
		c.Email, c.Phone, c.Address = email.String, phone.String, address.String
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveProduct(ctx context.Context, p schedule.FlagProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, size, price, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			price = excluded.price,
			active = excluded.active
	`, p.ID, p.Name, nullString(p.Size), p.Price.String(), p.Active, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id schedule.ProductID) (*schedule.FlagProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryProducts(ctx, "SELECT id, name, size, price, active, created_at FROM products WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, schedule.ErrProductNotFound
	}
	return &list[0], nil
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]schedule.FlagProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, name, size, price, active, created_at FROM products"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	return s.queryProducts(ctx, query+" ORDER BY name ASC")
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]schedule.FlagProduct, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []schedule.FlagProduct
	for rows.Next() {
		var p schedule.FlagProduct
		var size, createdAt sql.NullString
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &size, &price, &p.Active, &createdAt); err != nil {
			return nil, err
		}
		p.Size = size.String
		p.Price = parseDecimal(price)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// SUBSCRIPTION STORE
// =============================================================================

const subscriptionColumns = `s.id, s.customer_id, s.status, s.start_date, s.end_date,
	s.renewed_from_id, s.cancelled_at, s.created_at, s.updated_at`

// SaveSubscription replaces the subscription row and its child rows atomically.
func (s *Store) SaveSubscription(ctx context.Context, sub schedule.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions
		(id, customer_id, status, start_date, end_date, renewed_from_id, cancelled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			renewed_from_id = excluded.renewed_from_id,
			cancelled_at = excluded.cancelled_at,
			updated_at = excluded.updated_at
	`,
		sub.ID, sub.CustomerID, sub.Status, sub.StartDate.String(), sub.EndDate.String(),
		nullString(string(sub.RenewedFromID)), formatTimePtr(sub.CancelledAt),
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	if err := replaceChildren(ctx, tx, sub); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceChildren(ctx context.Context, db execer, sub schedule.Subscription) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM subscription_holidays WHERE subscription_id = ?", sub.ID); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM subscription_items WHERE subscription_id = ?", sub.ID); err != nil {
		return err
	}
	for i, id := range sub.HolidayIDs {
		if _, err := db.ExecContext(ctx,
			"INSERT OR IGNORE INTO subscription_holidays (subscription_id, holiday_id, position) VALUES (?, ?, ?)",
			sub.ID, id, i); err != nil {
			return fmt.Errorf("failed to save subscription holiday: %w", err)
		}
	}
	for i, item := range sub.Items {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO subscription_items (subscription_id, position, product_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)",
			sub.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String()); err != nil {
			return fmt.Errorf("failed to save subscription item: %w", err)
		}
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id schedule.SubscriptionID) (*schedule.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.querySubscriptions(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions s WHERE s.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, schedule.ErrSubscriptionNotFound
	}
	return &list[0], nil
}

func (s *Store) ListSubscriptions(ctx context.Context, status schedule.SubscriptionStatus) ([]schedule.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + subscriptionColumns + " FROM subscriptions s"
	var args []any
	if status != "" {
		query += " WHERE s.status = ?"
		args = append(args, status)
	}
	return s.querySubscriptions(ctx, query+" ORDER BY s.start_date ASC, s.id ASC", args...)
}

func (s *Store) ListSubscriptionsForHoliday(ctx context.Context, holidayID schedule.HolidayID, status schedule.SubscriptionStatus) ([]schedule.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + subscriptionColumns + ` FROM subscriptions s
		JOIN subscription_holidays sh ON sh.subscription_id = s.id
		WHERE sh.holiday_id = ?`
	args := []any{holidayID}
	if status != "" {
		query += " AND s.status = ?"
		args = append(args, status)
	}
	return s.querySubscriptions(ctx, query+" ORDER BY s.start_date ASC, s.id ASC", args...)
}

// querySubscriptions reads the rows fully before loading children, so it
// never holds two result sets on one connection.
func (s *Store) querySubscriptions(ctx context.Context, query string, args ...any) ([]schedule.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}

	var out []schedule.Subscription
	for rows.Next() {
		var sub schedule.Subscription
		var start, end string
		var renewedFrom, cancelledAt, createdAt, updatedAt sql.NullString
		if err := rows.Scan(&sub.ID, &sub.CustomerID, &sub.Status, &start, &end,
			&renewedFrom, &cancelledAt, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if sub.StartDate, err = schedule.ParseDate(start); err != nil {
			rows.Close()
			return nil, err
		}
		if sub.EndDate, err = schedule.ParseDate(end); err != nil {
			rows.Close()
			return nil, err
		}
		sub.RenewedFromID = schedule.SubscriptionID(renewedFrom.String)
		sub.CancelledAt = parseTimePtr(cancelledAt)
		sub.CreatedAt = parseTime(createdAt)
		sub.UpdatedAt = parseTime(updatedAt)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := loadChildren(ctx, s.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadChildren(ctx context.Context, db queryer, sub *schedule.Subscription) error {
	rows, err := db.QueryContext(ctx,
		"SELECT holiday_id FROM subscription_holidays WHERE subscription_id = ? ORDER BY position", sub.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id schedule.HolidayID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		sub.HolidayIDs = append(sub.HolidayIDs, id)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx,
		"SELECT product_id, quantity, unit_price FROM subscription_items WHERE subscription_id = ? ORDER BY position", sub.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item schedule.SubscriptionItem
		var price string
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return err
		}
		item.UnitPrice = parseDecimal(price)
		sub.Items = append(sub.Items, item)
	}
	return rows.Err()
}

// =============================================================================
// PLACEMENT STORE
// =============================================================================

const placementColumns = `id, subscription_id, holiday_id, product_id, quantity,
	planned_date, placement_date, removal_date, status,
	placed_at, placed_by, removed_at, removed_by, skipped_at, skip_reason,
	reminder_sent_at, notes, site_address, version, created_at, updated_at`

// CreatePlacement inserts a placement. The unique tuple index turns a racing
// second insert into ErrDuplicatePlacement.
func (s *Store) CreatePlacement(ctx context.Context, p schedule.FlagPlacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.PlannedDate.IsZero() {
		p.PlannedDate = p.PlacementDate
	}
	if p.Version == 0 {
		p.Version = 1
	}
	if p.Status == "" {
		p.Status = schedule.StatusScheduled
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flag_placements (`+placementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.SubscriptionID, p.HolidayID, p.ProductID, p.Quantity,
		p.PlannedDate.String(), p.PlacementDate.String(), p.RemovalDate.String(), p.Status,
		formatTimePtr(p.PlacedAt), nullString(p.PlacedBy),
		formatTimePtr(p.RemovedAt), nullString(p.RemovedBy),
		formatTimePtr(p.SkippedAt), nullString(p.SkipReason),
		formatTimePtr(p.ReminderSentAt), nullString(p.Notes), nullString(p.SiteAddress),
		p.Version, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return schedule.ErrDuplicatePlacement
		}
		return fmt.Errorf("failed to create placement: %w", err)
	}
	return nil
}

func (s *Store) PlacementExists(ctx context.Context, key schedule.PlacementKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM flag_placements
		WHERE subscription_id = ? AND holiday_id = ? AND product_id = ? AND planned_date = ?
	`, key.SubscriptionID, key.HolidayID, key.ProductID, key.Date.String()).Scan(&count)
	return count > 0, err
}

func (s *Store) GetPlacement(ctx context.Context, id schedule.PlacementID) (*schedule.FlagPlacement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryPlacements(ctx, "SELECT "+placementColumns+" FROM flag_placements WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, schedule.ErrPlacementNotFound
	}
	return &list[0], nil
}

func (s *Store) ListPlacements(ctx context.Context, f schedule.PlacementFilter) ([]schedule.FlagPlacement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.SubscriptionID != "" {
		where = append(where, "subscription_id = ?")
		args = append(args, f.SubscriptionID)
	}
	if f.HolidayID != "" {
		where = append(where, "holiday_id = ?")
		args = append(args, f.HolidayID)
	}
	if len(f.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		where = append(where, "status IN ("+marks+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	// ISO dates compare correctly as text.
	if !f.From.IsZero() {
		where = append(where, "placement_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "placement_date <= ?")
		args = append(args, f.To.String())
	}
	if f.ReminderUnsent {
		where = append(where, "reminder_sent_at IS NULL")
	}

	query := "SELECT " + placementColumns + " FROM flag_placements"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.queryPlacements(ctx, query+" ORDER BY placement_date ASC, id ASC", args...)
}

// UpdatePlacement is a compare-and-swap on version. The scheduling tuple
// columns are never rewritten.
func (s *Store) UpdatePlacement(ctx context.Context, p schedule.FlagPlacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE flag_placements SET
			quantity = ?, placement_date = ?, removal_date = ?, status = ?,
			placed_at = ?, placed_by = ?, removed_at = ?, removed_by = ?,
			skipped_at = ?, skip_reason = ?, reminder_sent_at = ?, notes = ?,
			site_address = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		p.Quantity, p.PlacementDate.String(), p.RemovalDate.String(), p.Status,
		formatTimePtr(p.PlacedAt), nullString(p.PlacedBy),
		formatTimePtr(p.RemovedAt), nullString(p.RemovedBy),
		formatTimePtr(p.SkippedAt), nullString(p.SkipReason),
		formatTimePtr(p.ReminderSentAt), nullString(p.Notes), nullString(p.SiteAddress),
		formatTime(p.UpdatedAt),
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update placement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flag_placements WHERE id = ?", p.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return schedule.ErrPlacementNotFound
	}
	return schedule.ErrConcurrentModification
}

func (s *Store) queryPlacements(ctx context.Context, query string, args ...any) ([]schedule.FlagPlacement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	var out []schedule.FlagPlacement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlacement(rows *sql.Rows) (schedule.FlagPlacement, error) {
	var p schedule.FlagPlacement
	var planned, placement, removal string
	var placedAt, placedBy, removedAt, removedBy, skippedAt, skipReason sql.NullString
	var reminderAt, notes, site, createdAt, updatedAt sql.NullString

	if err := rows.Scan(&p.ID, &p.SubscriptionID, &p.HolidayID, &p.ProductID, &p.Quantity,
		&planned, &placement, &removal, &p.Status,
		&placedAt, &placedBy, &removedAt, &removedBy, &skippedAt, &skipReason,
		&reminderAt, &notes, &site, &p.Version, &createdAt, &updatedAt); err != nil {
		return p, err
	}

	var err error
	if p.PlannedDate, err = schedule.ParseDate(planned); err != nil {
		return p, err
	}
	if p.PlacementDate, err = schedule.ParseDate(placement); err != nil {
		return p, err
	}
	if p.RemovalDate, err = schedule.ParseDate(removal); err != nil {
		return p, err
	}
	p.PlacedAt, p.PlacedBy = parseTimePtr(placedAt), placedBy.String
	p.RemovedAt, p.RemovedBy = parseTimePtr(removedAt), removedBy.String
	p.SkippedAt, p.SkipReason = parseTimePtr(skippedAt), skipReason.String
	p.ReminderSentAt = parseTimePtr(reminderAt)
	p.Notes, p.SiteAddress = notes.String, site.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"flag_placements", "subscription_items", "subscription_holidays",
		"subscriptions", "products", "customers", "holidays"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return formatTime(*t)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
