/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store on a single SQLite file. Used for local
  deployments and for tests (":memory:"). The remote document store lives in
  store/rtdb; both honour the same contracts.

KEY TABLES:
  tier_config:  Single-row raw configuration document
  sales:        One row per sale, keyed (month, uid, id)
  ml_links:     Marketplace links, keyed (week, uid, link_key)
  closures:     One JSON record per month
  instagram:    Daily post/story counters, keyed (uid, date)
  users:        Profiles

MONEY:
  Amounts are stored as decimal TEXT, never REAL, so values round-trip
  exactly.

WRITE-IF-ABSENT:
  The ml_links primary key is the dedup key. A second insert of the same
  (week, uid, link_key) fails with a constraint error that AddMarketplaceLink
  maps to ErrDuplicateLink. No read-then-write race is possible.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety around multi-statement operations.
  WAL mode keeps readers from blocking the writer.

USAGE:
  store, err := sqlite.New("./data/sales.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/sales-engine/generic"
)

// Store implements generic.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tier_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		raw TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		month TEXT NOT NULL,
		uid TEXT NOT NULL,
		id TEXT NOT NULL,
		date TEXT NOT NULL,
		client TEXT NOT NULL DEFAULT '',
		net TEXT NOT NULL,
		gross TEXT NOT NULL,
		capa TEXT NOT NULL DEFAULT '0',
		impermeabilizacao TEXT NOT NULL DEFAULT '0',
		order_id TEXT NOT NULL DEFAULT '',
		service_only BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		PRIMARY KEY (month, uid, id)
	);

	-- Month listing ordered by date (hot path)
	CREATE INDEX IF NOT EXISTS idx_sales_month_date
		ON sales(month, date);

	-- Dedup key for marketplace links
	CREATE TABLE IF NOT EXISTS ml_links (
		week TEXT NOT NULL,
		uid TEXT NOT NULL,
		link_key TEXT NOT NULL,
		url TEXT NOT NULL,
		ts INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (week, uid, link_key)
	);

	CREATE INDEX IF NOT EXISTS idx_ml_links_uid_ts
		ON ml_links(uid, ts);

	CREATE TABLE IF NOT EXISTS closures (
		month TEXT PRIMARY KEY,
		record_json TEXT NOT NULL,
		published_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS instagram (
		uid TEXT NOT NULL,
		date TEXT NOT NULL,
		posts INTEGER NOT NULL DEFAULT 0,
		stories INTEGER NOT NULL DEFAULT 0,
		times_json TEXT,
		PRIMARY KEY (uid, date)
	);

	CREATE TABLE IF NOT EXISTS users (
		uid TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		email TEXT,
		monthly_target TEXT NOT NULL DEFAULT '0'
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (s *Store) FetchTierConfig(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT raw FROM tier_config WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tier config: %w", err)
	}
	return []byte(raw), nil
}

func (s *Store) SaveTierConfig(ctx context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tier_config (id, raw, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET raw = excluded.raw, updated_at = excluded.updated_at
	`, string(raw), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save tier config: %w", err)
	}
	return nil
}

func (s *Store) FetchTeamStructure(ctx context.Context) (generic.Team, error) {
	raw, err := s.FetchTierConfig(ctx)
	if err != nil {
		return generic.Team{}, err
	}
	return generic.TeamFromConfigJSON(raw)
}

// =============================================================================
// SALE STORE
// =============================================================================

// timeLayout keeps sub-second precision on stored timestamps.
const timeLayout = time.RFC3339Nano

const saleColumns = `uid, id, date, client, net, gross, capa, impermeabilizacao,
	order_id, service_only, status, created_at`

func (s *Store) FetchSalesForMonth(ctx context.Context, month generic.Month) (generic.SalesByUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales, err := s.querySales(ctx, `SELECT `+saleColumns+` FROM sales WHERE month = ? ORDER BY date ASC, rowid ASC`, month)
	if err != nil {
		return nil, err
	}
	result := make(generic.SalesByUser)
	for _, sale := range sales {
		result[sale.SellerUID] = append(result[sale.SellerUID], sale)
	}
	return result, nil
}

func (s *Store) FetchSales(ctx context.Context, month generic.Month, uid generic.UserID) ([]generic.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales WHERE month = ? AND uid = ? ORDER BY date ASC, rowid ASC`, month, uid)
}

func (s *Store) AddSale(ctx context.Context, sale generic.Sale) error {
	if sale.ID == "" {
		return fmt.Errorf("%w: missing id", generic.ErrInvalidSale)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSale(ctx, s.db, sale)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSale(ctx context.Context, db execer, sale generic.Sale) error {
	createdAt := sale.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sales (month, `+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sale.Month(),
		sale.SellerUID,
		sale.ID,
		sale.Date,
		sale.Client,
		sale.Net.Value.String(),
		sale.Gross.Value.String(),
		sale.Services.Capa.Value.String(),
		sale.Services.Impermeabilizacao.Value.String(),
		sale.OrderID,
		sale.ServiceOnly,
		sale.Status,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: sale %s already exists", generic.ErrInvalidSale, sale.ID)
		}
		return fmt.Errorf("failed to add sale: %w", err)
	}
	return nil
}

// MoveSale deletes the sale from month from and files it under its new date
// in one transaction.
func (s *Store) MoveSale(ctx context.Context, from generic.Month, sale generic.Sale) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM sales WHERE month = ? AND uid = ? AND id = ?", from, sale.SellerUID, sale.ID)
		if err != nil {
			return fmt.Errorf("failed to move sale: %w", err)
		}
		if err := requireAffected(res, generic.ErrSaleNotFound); err != nil {
			return err
		}
		return insertSale(ctx, tx, sale)
	})
}

// UpdateSale replaces the sale in place. See MoveSale for month changes.
func (s *Store) UpdateSale(ctx context.Context, sale generic.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales SET date = ?, client = ?, net = ?, gross = ?, capa = ?,
			impermeabilizacao = ?, order_id = ?, service_only = ?, status = ?
		WHERE month = ? AND uid = ? AND id = ?
	`,
		sale.Date,
		sale.Client,
		sale.Net.Value.String(),
		sale.Gross.Value.String(),
		sale.Services.Capa.Value.String(),
		sale.Services.Impermeabilizacao.Value.String(),
		sale.OrderID,
		sale.ServiceOnly,
		sale.Status,
		sale.Month(),
		sale.SellerUID,
		sale.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", err)
	}
	return requireAffected(res, generic.ErrSaleNotFound)
}

func (s *Store) DeleteSale(ctx context.Context, month generic.Month, uid generic.UserID, id generic.SaleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sales WHERE month = ? AND uid = ? AND id = ?", month, uid, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	return requireAffected(res, generic.ErrSaleNotFound)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]generic.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []generic.Sale
	for rows.Next() {
		var (
			sale                             generic.Sale
			net, gross, capa, imper, created string
		)
		if err := rows.Scan(
			&sale.SellerUID, &sale.ID, &sale.Date, &sale.Client,
			&net, &gross, &capa, &imper,
			&sale.OrderID, &sale.ServiceOnly, &sale.Status, &created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sale.Net = parseAmount(net)
		sale.Gross = parseAmount(gross)
		sale.Services = generic.Services{Capa: parseAmount(capa), Impermeabilizacao: parseAmount(imper)}
		createdAt, err := time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at of sale %s: %w", sale.ID, err)
		}
		sale.CreatedAt = createdAt
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// =============================================================================
// LINK STORE
// =============================================================================

func (s *Store) AddMarketplaceLink(ctx context.Context, link generic.MarketplaceLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ml_links (week, uid, link_key, url, ts) VALUES (?, ?, ?, ?, ?)",
		link.Week, link.UID, link.Key, link.URL, link.TS,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.DuplicateLinkError{UID: link.UID, Week: link.Week, Key: link.Key}
		}
		return fmt.Errorf("failed to add marketplace link: %w", err)
	}
	return nil
}

func (s *Store) FetchMarketplaceLinks(ctx context.Context, uid generic.UserID, week generic.WeekKey) ([]generic.MarketplaceLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT link_key, url, ts FROM ml_links WHERE week = ? AND uid = ? ORDER BY ts ASC, link_key ASC",
		week, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query marketplace links: %w", err)
	}
	defer rows.Close()

	var links []generic.MarketplaceLink
	for rows.Next() {
		l := generic.MarketplaceLink{Week: week, UID: uid}
		if err := rows.Scan(&l.Key, &l.URL, &l.TS); err != nil {
			return nil, fmt.Errorf("failed to scan marketplace link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) FetchMarketplaceLinkCount(ctx context.Context, uid generic.UserID, week generic.WeekKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ml_links WHERE week = ? AND uid = ?", week, uid,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count marketplace links: %w", err)
	}
	return count, nil
}

// =============================================================================
// CLOSURE STORE
// =============================================================================

func (s *Store) FetchClosure(ctx context.Context, month generic.Month) (*generic.ClosureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT record_json FROM closures WHERE month = ?", month).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch closure: %w", err)
	}

	var record generic.ClosureRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to decode closure %s: %w", month, err)
	}
	return &record, nil
}

func (s *Store) PublishClosure(ctx context.Context, record generic.ClosureRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode closure: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO closures (month, record_json, published_at) VALUES (?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET record_json = excluded.record_json, published_at = excluded.published_at
	`, record.Month, string(raw), record.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to publish closure: %w", err)
	}
	return nil
}

// =============================================================================
// INSTAGRAM STORE
// =============================================================================

func (s *Store) IncrementInstagram(ctx context.Context, uid generic.UserID, date generic.Date, kind generic.InstagramKind, at string) (generic.InstagramDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.InstagramDay{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day, err := scanInstagramDay(tx.QueryRowContext(ctx,
		"SELECT posts, stories, times_json FROM instagram WHERE uid = ? AND date = ?", uid, date))
	if err != nil {
		return generic.InstagramDay{}, err
	}

	day = day.Increment(kind, at)
	times, _ := json.Marshal(day.Times)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO instagram (uid, date, posts, stories, times_json) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid, date) DO UPDATE SET posts = excluded.posts, stories = excluded.stories, times_json = excluded.times_json
	`, uid, date, day.Posts, day.Stories, string(times))
	if err != nil {
		return generic.InstagramDay{}, fmt.Errorf("failed to save instagram day: %w", err)
	}
	return day, tx.Commit()
}

func (s *Store) FetchInstagramDay(ctx context.Context, uid generic.UserID, date generic.Date) (generic.InstagramDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanInstagramDay(s.db.QueryRowContext(ctx,
		"SELECT posts, stories, times_json FROM instagram WHERE uid = ? AND date = ?", uid, date))
}

// scanInstagramDay returns a zero day when the row is missing.
func scanInstagramDay(row *sql.Row) (generic.InstagramDay, error) {
	var (
		day   generic.InstagramDay
		times sql.NullString
	)
	err := row.Scan(&day.Posts, &day.Stories, &times)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.InstagramDay{}, nil
	}
	if err != nil {
		return generic.InstagramDay{}, fmt.Errorf("failed to scan instagram day: %w", err)
	}
	if times.Valid && times.String != "" && times.String != "null" {
		if err := json.Unmarshal([]byte(times.String), &day.Times); err != nil {
			return generic.InstagramDay{}, fmt.Errorf("failed to decode instagram times: %w", err)
		}
	}
	return day, nil
}

// =============================================================================
// USER STORE
// =============================================================================

func (s *Store) GetUser(ctx context.Context, uid generic.UserID) (*generic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u      generic.User
		email  sql.NullString
		target string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT uid, name, role, email, monthly_target FROM users WHERE uid = ?", uid,
	).Scan(&u.UID, &u.Name, &u.Role, &email, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Email = email.String
	u.MonthlyTarget = parseAmount(target)
	return &u, nil
}

func (s *Store) SaveUser(ctx context.Context, user generic.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (uid, name, role, email, monthly_target) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET name = excluded.name, role = excluded.role,
			email = excluded.email, monthly_target = excluded.monthly_target
	`, user.UID, user.Name, user.Role, nullString(user.Email), user.MonthlyTarget.Value.String())
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// =============================================================================
// ADMIN STORE
// =============================================================================

func (s *Store) ResetUserDay(ctx context.Context, uid generic.UserID, date generic.Date, loc *time.Location) error {
	start := date.Time(loc)
	if start.IsZero() {
		return fmt.Errorf("%w: date %q", generic.ErrInvalidKey, date)
	}
	end := start.AddDate(0, 0, 1)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmts := []struct {
			query string
			args  []any
		}{
			{"DELETE FROM sales WHERE month = ? AND uid = ? AND date = ?", []any{date.Month(), uid, date}},
			{"DELETE FROM instagram WHERE uid = ? AND date = ?", []any{uid, date}},
			{"DELETE FROM ml_links WHERE uid = ? AND ts > 0 AND ts >= ? AND ts < ?", []any{uid, start.UnixMilli(), end.UnixMilli()}},
		}
		for _, st := range stmts {
			if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
				return fmt.Errorf("failed to reset user day: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ResetUserMonth(ctx context.Context, uid generic.UserID, month generic.Month, loc *time.Location) error {
	weeks := generic.WeeksOf(month, loc)
	if len(weeks) == 0 {
		return fmt.Errorf("%w: month %q", generic.ErrInvalidKey, month)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sales WHERE month = ? AND uid = ?", month, uid); err != nil {
			return fmt.Errorf("failed to reset user sales: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM instagram WHERE uid = ? AND date LIKE ?", uid, string(month)+"-%"); err != nil {
			return fmt.Errorf("failed to reset user instagram: %w", err)
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(weeks)), ", ")
		args := []any{uid}
		for _, w := range weeks {
			args = append(args, w)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM ml_links WHERE uid = ? AND week IN ("+placeholders+")", args...); err != nil {
			return fmt.Errorf("failed to reset user links: %w", err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"sales", "ml_links", "closures", "instagram", "users", "tier_config"}
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

func parseAmount(value string) generic.Amount {
	return generic.NewAmountFromDecimal(generic.MustParseDecimal(value), generic.UnitBRL)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
