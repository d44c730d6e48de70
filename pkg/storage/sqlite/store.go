// Package sqlite provides SQLite-backed account and settings storage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/Suhaibinator/redditauth/pkg/settings"
	"github.com/Suhaibinator/redditauth/pkg/storage/sqlite/migrations"
	"github.com/Suhaibinator/redditauth/pkg/users"
)

const (
	migrationTable     = "schema_migrations"
	redditSettingsName = "social_auth_reddit"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = users.ErrDuplicate

// Store persists accounts and settings in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Accounts returns the store as a users.Store.
func (s *Store) Accounts() users.Store { return accountStore{s} }

// Settings returns the store as a settings.Store.
func (s *Store) Settings() settings.Store { return settingsStore{s} }

type accountStore struct{ s *Store }

const accountColumns = `id, provider, external_id, name, email, avatar_url, access_token, extra_data, created_at, last_login_at`

func (a accountStore) FindByExternalID(ctx context.Context, provider, externalID string) (*users.Account, error) {
	row := a.s.sqlDB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = ? AND external_id = ?`,
		provider, externalID)
	return scanAccount(row)
}

func (a accountStore) FindByID(ctx context.Context, id string) (*users.Account, error) {
	row := a.s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (a accountStore) Create(ctx context.Context, acct *users.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.s.sqlDB.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID,
		acct.Provider,
		acct.ExternalID,
		acct.Name,
		acct.Email,
		acct.AvatarURL,
		acct.AccessToken,
		extraDataText(acct.ExtraData),
		toMillis(acct.CreatedAt),
		toMillis(acct.LastLoginAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, acct.Provider, acct.ExternalID)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (a accountStore) Update(ctx context.Context, acct *users.Account) error {
	res, err := a.s.sqlDB.ExecContext(ctx,
		`UPDATE accounts SET name = ?, email = ?, avatar_url = ?, access_token = ?, extra_data = ?, last_login_at = ? WHERE id = ?`,
		acct.Name,
		acct.Email,
		acct.AvatarURL,
		acct.AccessToken,
		extraDataText(acct.ExtraData),
		toMillis(acct.LastLoginAt),
		acct.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*users.Account, error) {
	var (
		acct             users.Account
		extra            string
		created, lastLog int64
	)
	err := row.Scan(
		&acct.ID,
		&acct.Provider,
		&acct.ExternalID,
		&acct.Name,
		&acct.Email,
		&acct.AvatarURL,
		&acct.AccessToken,
		&extra,
		&created,
		&lastLog,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acct.ExtraData = json.RawMessage(extra)
	acct.CreatedAt = fromMillis(created)
	acct.LastLoginAt = fromMillis(lastLog)
	return &acct, nil
}

func extraDataText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}

type settingsStore struct{ s *Store }

// Load returns the saved settings, or zero settings when none were saved.
func (st settingsStore) Load(ctx context.Context) (settings.Settings, error) {
	var value string
	err := st.s.sqlDB.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, redditSettingsName).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Settings{}, nil
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	var out settings.Settings
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return settings.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

func (st settingsStore) Save(ctx context.Context, in settings.Settings) error {
	value, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = st.s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		redditSettingsName, string(value), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// applyMigrations runs each embedded *.sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := extractUp(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func extractUp(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, downMarker)
	if downIdx == -1 {
		return content[upIdx+len(upMarker):]
	}
	return content[upIdx+len(upMarker) : downIdx]
}

var (
	_ users.Store    = accountStore{}
	_ settings.Store = settingsStore{}
)
