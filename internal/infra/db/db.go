package db

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/evotodo/todo-api/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"
)

const defaultSQLiteDSN = "file:todo.db"

// UnicodeLower is a SQLite function folding case beyond ASCII, which the
// built-in LOWER does not do.
const UnicodeLower = "unicode_lower"

func init() {
	msqlite.MustRegisterDeterministicScalarFunction(UnicodeLower, 1, unicodeLower)
}

func unicodeLower(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// New opens the configured database. Postgres URLs and keyword DSNs go to the
// pgx driver, everything else ("sqlite:" or "file:" prefixed, or empty) opens
// SQLite through the pure-Go modernc driver.
func New(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if IsPostgres(dsn) {
		d, err := gorm.Open(postgres.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := d.DB()
		if err != nil {
			return nil, err
		}
		if cfg.Database.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
		}
		if cfg.Database.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		return d, nil
	}

	return openSQLite(sqliteDSN(dsn), gcfg)
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" {
		dsn = defaultSQLiteDSN
	}
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	return dsn
}

func openSQLite(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	d, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, gcfg)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(dsn, "mode=memory") && !strings.Contains(dsn, ":memory:") {
		if err := d.Exec(`PRAGMA journal_mode=WAL;`).Error; err != nil {
			return nil, err
		}
	}
	if err := d.Exec(`PRAGMA busy_timeout=5000;`).Error; err != nil {
		return nil, err
	}

	// sqlite serializes writers; one connection avoids SQLITE_BUSY
	sqlDB, err := d.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return d, nil
}
