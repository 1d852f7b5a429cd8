package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/bot-console/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// sqliteTimeLayout matches what CURRENT_TIMESTAMP writes, so text comparisons order correctly.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// Options configures Open.
type Options struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

// SQLStore implements Repository on top of sqlx.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	logger *slog.Logger
}

type errorLogRow struct {
	ID             int64          `db:"id"`
	CreatedAt      nullTime       `db:"created_at"`
	UserQuery      sql.NullString `db:"user_query"`
	ErrorMessage   sql.NullString `db:"error_message"`
	Context        jsonColumn     `db:"context"`
	AdditionalInfo jsonColumn     `db:"additional_info"`
}

type statsRow struct {
	Total      int64    `db:"total"`
	SinceCount int64    `db:"since_count"`
	LastAt     nullTime `db:"last_at"`
}

// Open connects to the configured database and optionally applies migrations.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dsn := opts.DSN
	switch opts.Driver {
	case DriverSQLite:
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("failed to close database after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if opts.AutoMigrate {
		if err := ApplyMigrations(db.DB, opts.Driver, logger); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				logger.Warn("failed to close database after migration failure", "error", closeErr)
			}
			return nil, err
		}
	}

	return NewSQLStore(db, opts.Driver, logger), nil
}

// NewSQLStore wraps an existing connection pool.
func NewSQLStore(db *sqlx.DB, driver string, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLStore{
		db:     db,
		driver: driver,
		logger: logger.With("component", "store"),
	}
}

// DB exposes the underlying pool for tooling.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecentErrors returns the newest error_log rows.
func (s *SQLStore) RecentErrors(ctx context.Context, limit int) ([]domain.ErrorLogRecord, error) {
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT id, created_at, user_query, error_message, context, additional_info
		FROM error_log
		ORDER BY %s DESC, id DESC
		LIMIT ?`, s.timeKey("created_at")))

	var rows []errorLogRow
	if err := s.db.SelectContext(ctx, &rows, query, clampLimit(limit)); err != nil {
		return nil, queryError("query recent errors", err)
	}

	records := make([]domain.ErrorLogRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.ErrorLogRecord{
			ID:             row.ID,
			CreatedAt:      row.CreatedAt.Time,
			UserQuery:      row.UserQuery.String,
			ErrorMessage:   row.ErrorMessage.String,
			Context:        row.Context.raw(),
			AdditionalInfo: row.AdditionalInfo.raw(),
		})
	}

	s.logger.Debug("Loaded recent errors", "count", len(records))
	return records, nil
}

// ErrorStats summarizes the error_log table.
func (s *SQLStore) ErrorStats(ctx context.Context, since time.Time) (*domain.ErrorStats, error) {
	key := s.timeKey("created_at")
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN %[1]s >= %[2]s THEN 1 ELSE 0 END), 0) AS since_count,
		       (SELECT created_at FROM error_log ORDER BY %[1]s DESC, id DESC LIMIT 1) AS last_at
		FROM error_log`, key, s.timeKey("?")))

	var row statsRow
	if err := s.db.GetContext(ctx, &row, query, s.timeArg(since)); err != nil {
		return nil, queryError("query error stats", err)
	}

	stats := &domain.ErrorStats{
		Total:      row.Total,
		SinceCount: row.SinceCount,
		Since:      since.UTC(),
	}
	if row.LastAt.Valid {
		last := row.LastAt.Time
		stats.LastAt = &last
	}
	return stats, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// timeKey returns an expression that orders expr chronologically. SQLite
// stores timestamps as text, possibly with offsets or a T separator, so it is
// normalized through julianday.
func (s *SQLStore) timeKey(expr string) string {
	if s.driver == DriverSQLite {
		return "julianday(" + expr + ")"
	}
	return expr
}

// timeArg formats t the way the driver stores created_at.
func (s *SQLStore) timeArg(t time.Time) any {
	if s.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
