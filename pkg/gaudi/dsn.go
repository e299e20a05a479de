package gaudi

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
)

// dsn is a configured database URL: a postgres:// URL or key/value string,
// or an SQLite path, sqlite:// URL, file: URI or :memory:.
type dsn string

var sqliteSchemes = []string{"sqlite://", "sqlite3://"}

// dialect guesses the dialect from the URL. Anything not recognisably SQLite
// is treated as PostgreSQL.
func (s dsn) dialect() string {
	lower := strings.ToLower(string(s))
	if lower == ":memory:" || strings.HasPrefix(lower, "file:") {
		return "sqlite"
	}
	for _, scheme := range sqliteSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "sqlite"
		}
	}
	switch path.Ext(lower) {
	case ".db", ".sqlite", ".sqlite3":
		if !strings.Contains(lower, "://") {
			return "sqlite"
		}
	}
	return "postgres"
}

// sqlitePath strips a sqlite:// scheme, leaving a path or file: URI.
func (s dsn) sqlitePath() string {
	p := string(s)
	for _, scheme := range sqliteSchemes {
		p = strings.TrimPrefix(p, scheme)
	}
	return p
}

// redacted masks the password of a URL for logs and errors.
func (s dsn) redacted() string {
	u, err := url.Parse(string(s))
	if err != nil || u.User == nil {
		return string(s)
	}
	return u.Redacted()
}

// open returns a pool for d. SQLite connections enforce foreign keys and
// wait on locks; an in-memory database lives on a single connection.
func (s dsn) open(d dialect.Dialect) (*sql.DB, error) {
	source := string(s)
	single := false
	if d.Name() == "sqlite" {
		source = s.sqlitePath()
		single = strings.Contains(source, ":memory:") || strings.Contains(source, "mode=memory")
		sep := "?"
		if strings.Contains(source, "?") {
			sep = "&"
		}
		source += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(d.DriverName(), source)
	if err != nil {
		return nil, err
	}
	if single {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// connect opens and pings the database of cfg. PostgreSQL sessions use UTC
// so stored timestamps compare consistently.
func connect(cfg *Config, d dialect.Dialect) (*sql.DB, error) {
	s := dsn(cfg.DatabaseURL)
	fail := func(cause error) error {
		return &ConnectionError{URL: s.redacted(), Dialect: d.Name(), Cause: cause}
	}

	db, err := s.open(d)
	if err != nil {
		return nil, fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fail(alerr.Wrap(alerr.ErrSQLConnection, err, "database is not reachable"))
	}
	if d.Name() == "postgres" {
		if _, err := db.ExecContext(ctx, "SET timezone = 'UTC'"); err != nil {
			db.Close()
			return nil, fail(fmt.Errorf("set UTC timezone: %w", err))
		}
	}

	slog.Debug("connected", "dialect", d.Name(), "url", s.redacted())
	return db, nil
}
