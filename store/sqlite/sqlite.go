/*
Package sqlite provides a SQLite-backed implementation of household.Store.

PURPOSE:
  Owns the durable representation of the five household collections.
  Everything else in the application reaches storage through the
  persistence engine, which in turn only talks to this package through the
  household.Store interface.

INTERFACES IMPLEMENTED:
  household.Store:     Collection reads, WithTx, PruneRecords
  household.Estimator: Page usage and filesystem quota

KEY TABLES:
  users:        id, name, role, avatar            (idx_users_role)
  score_items:  id, label, points, type, icon     (idx_score_items_type)
  reward_items: id, label, points, icon
  records:      ledger entries                    (idx_records_child_id, idx_records_timestamp)
  messages:     child messages                    (idx_messages_from_child_id, _is_read, _timestamp)

SCHEMA VERSIONING:
  Tables are created by embedded goose migrations (migrations/*.sql).
  After migrating, New checks that the goose version equals
  household.SchemaVersion and that every index declared in household.Schema
  exists. A mismatch is ErrSchemaMismatch and the store is not returned.
  Structural changes are new migration files; existing rows are preserved.

ORDERING:
  Reads return rows in insertion order (rowid). A snapshot written with
  ReplaceAll therefore reads back in the same order it was written.

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection. There is one logical
  writer per database file; concurrent external writers are not supported.

USAGE:
  store, err := sqlite.New("./data/familypoints.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - household/store.go: Interface definitions
  - household/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/rushbq/Familypoints-Pages/household"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements household.Store using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	quota  int64
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithQuota fixes the quota reported by Estimate. Without it the quota is
// derived from free space on the filesystem holding the database.
func WithQuota(bytes int64) Option {
	return func(s *Store) { s.quota = bytes }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New opens (or creates) the database at dbPath, migrates it and verifies
// the schema. Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	return NewContext(context.Background(), dbPath, opts...)
}

// NewContext is New with a context for the migration step.
func NewContext(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", household.ErrStorageUnavailable, err)
	}
	// One connection: ":memory:" databases are per-connection, and the
	// single-writer model never needs more.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dbPath, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = store.logger.With(zap.String("component", "sqlite"))

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify("ping", err)
	}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.checkSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store.logger.Info("sqlite store opened", zap.String("path", dbPath))
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SCHEMA
// =============================================================================

func (s *Store) provider() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
}

// migrate applies pending migrations.
func (s *Store) migrate(ctx context.Context) error {
	p, err := s.provider()
	if err != nil {
		return fmt.Errorf("%w: loading migrations: %v", household.ErrSchemaMismatch, err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: running migrations: %v", household.ErrSchemaMismatch, err)
	}
	for _, r := range results {
		s.logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}

// SchemaVersion returns the version recorded by goose.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// checkSchema compares the live database with household.Schema.
func (s *Store) checkSchema(ctx context.Context) error {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading schema version: %v", household.ErrSchemaMismatch, err)
	}
	if err := household.Schema.CheckVersion(version); err != nil {
		return err
	}

	var missing []string
	for _, name := range household.Schema.IndexNames() {
		var found string
		err := s.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?", name,
		).Scan(&found)
		if err == sql.ErrNoRows {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return classify("check schema", err)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing indexes %s", household.ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}

// =============================================================================
// READS (household.Store interface)
// =============================================================================

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, classify("count users", err)
	}
	return count, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]household.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, role, avatar FROM users ORDER BY rowid")
	if err != nil {
		return nil, classify("list users", err)
	}
	defer rows.Close()

	users := []household.User{}
	for rows.Next() {
		var u household.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.Avatar); err != nil {
			return nil, classify("scan user", err)
		}
		users = append(users, u)
	}
	return users, classify("list users", rows.Err())
}

func (s *Store) ListScoreItems(ctx context.Context) ([]household.ScoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, label, points, type, icon FROM score_items ORDER BY rowid")
	if err != nil {
		return nil, classify("list score items", err)
	}
	defer rows.Close()

	items := []household.ScoreItem{}
	for rows.Next() {
		var it household.ScoreItem
		if err := rows.Scan(&it.ID, &it.Label, &it.Points, &it.Type, &it.Icon); err != nil {
			return nil, classify("scan score item", err)
		}
		items = append(items, it)
	}
	return items, classify("list score items", rows.Err())
}

func (s *Store) ListRewardItems(ctx context.Context) ([]household.RewardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, label, points, icon FROM reward_items ORDER BY rowid")
	if err != nil {
		return nil, classify("list reward items", err)
	}
	defer rows.Close()

	items := []household.RewardItem{}
	for rows.Next() {
		var it household.RewardItem
		if err := rows.Scan(&it.ID, &it.Label, &it.Points, &it.Icon); err != nil {
			return nil, classify("scan reward item", err)
		}
		items = append(items, it)
	}
	return items, classify("list reward items", rows.Err())
}

const recordColumns = `id, child_id, child_name, item_id, item_name, points_change,
	timestamp, note, created_by_id, created_by_name`

func (s *Store) ListRecords(ctx context.Context) ([]household.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, "SELECT "+recordColumns+" FROM records ORDER BY rowid")
}

// RecordsByChild uses idx_records_child_id.
func (s *Store) RecordsByChild(ctx context.Context, childID string, since household.Timestamp) ([]household.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM records WHERE child_id = ? AND timestamp >= ? ORDER BY timestamp, rowid",
		childID, int64(since),
	)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]household.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query records", err)
	}
	defer rows.Close()

	records := []household.ScoreRecord{}
	for rows.Next() {
		var r household.ScoreRecord
		if err := rows.Scan(
			&r.ID, &r.ChildID, &r.ChildName, &r.ItemID, &r.ItemName, &r.PointsChange,
			&r.Timestamp, &r.Note, &r.CreatedByID, &r.CreatedByName,
		); err != nil {
			return nil, classify("scan record", err)
		}
		records = append(records, r)
	}
	return records, classify("query records", rows.Err())
}

func (s *Store) ListMessages(ctx context.Context) ([]household.SecretMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, from_child_id, from_child_name, content, timestamp, is_read FROM messages ORDER BY rowid")
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer rows.Close()

	messages := []household.SecretMessage{}
	for rows.Next() {
		var m household.SecretMessage
		if err := rows.Scan(&m.ID, &m.FromChildID, &m.FromChildName, &m.Content, &m.Timestamp, &m.IsRead); err != nil {
			return nil, classify("scan message", err)
		}
		messages = append(messages, m)
	}
	return messages, classify("list messages", rows.Err())
}

// CountUnreadMessages uses idx_messages_is_read.
func (s *Store) CountUnreadMessages(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE is_read = 0").Scan(&count); err != nil {
		return 0, classify("count unread", err)
	}
	return count, nil
}

// =============================================================================
// RETENTION
// =============================================================================

// PruneRecords deletes ledger entries older than before. Uses
// idx_records_timestamp. Runs outside any multi-collection transaction.
func (s *Store) PruneRecords(ctx context.Context, before household.Timestamp) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE timestamp < ?", int64(before))
	if err != nil {
		return 0, classify("prune records", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("prune records", err)
	}
	return int(n), nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(household.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

var tableNames = map[household.CollectionName]string{
	household.CollectionUsers:       "users",
	household.CollectionScoreItems:  "score_items",
	household.CollectionRewardItems: "reward_items",
	household.CollectionRecords:     "records",
	household.CollectionMessages:    "messages",
}

func (ts *txStore) Clear(ctx context.Context, c household.CollectionName) error {
	table, ok := tableNames[c]
	if !ok {
		return fmt.Errorf("unknown collection %q", c)
	}
	if _, err := ts.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return classify("clear "+table, err)
	}
	return nil
}

// insertEach prepares query once and executes it for n rows.
func (ts *txStore) insertEach(ctx context.Context, query string, n int, args func(i int) []any) error {
	stmt, err := ts.tx.PrepareContext(ctx, query)
	if err != nil {
		return classify("prepare insert", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return classify("insert", err)
		}
	}
	return nil
}

func (ts *txStore) InsertUsers(ctx context.Context, users []household.User) error {
	return ts.insertEach(ctx,
		"INSERT INTO users (id, name, role, avatar) VALUES (?, ?, ?, ?)",
		len(users), func(i int) []any {
			u := users[i]
			return []any{u.ID, u.Name, string(u.Role), u.Avatar}
		})
}

func (ts *txStore) InsertScoreItems(ctx context.Context, items []household.ScoreItem) error {
	return ts.insertEach(ctx,
		"INSERT INTO score_items (id, label, points, type, icon) VALUES (?, ?, ?, ?, ?)",
		len(items), func(i int) []any {
			it := items[i]
			return []any{it.ID, it.Label, it.Points, string(it.Type), it.Icon}
		})
}

func (ts *txStore) InsertRewardItems(ctx context.Context, items []household.RewardItem) error {
	return ts.insertEach(ctx,
		"INSERT INTO reward_items (id, label, points, icon) VALUES (?, ?, ?, ?)",
		len(items), func(i int) []any {
			it := items[i]
			return []any{it.ID, it.Label, it.Points, it.Icon}
		})
}

func (ts *txStore) InsertRecords(ctx context.Context, records []household.ScoreRecord) error {
	return ts.insertEach(ctx,
		"INSERT INTO records ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(records), func(i int) []any {
			r := records[i]
			return []any{
				r.ID, r.ChildID, r.ChildName, r.ItemID, r.ItemName, r.PointsChange,
				int64(r.Timestamp), r.Note, r.CreatedByID, r.CreatedByName,
			}
		})
}

func (ts *txStore) InsertMessages(ctx context.Context, messages []household.SecretMessage) error {
	return ts.insertEach(ctx,
		"INSERT INTO messages (id, from_child_id, from_child_name, content, timestamp, is_read) VALUES (?, ?, ?, ?, ?, ?)",
		len(messages), func(i int) []any {
			m := messages[i]
			return []any{m.ID, m.FromChildID, m.FromChildName, m.Content, int64(m.Timestamp), m.IsRead}
		})
}
