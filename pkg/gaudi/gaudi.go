package gaudi

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gauditech/gaudi-sub004/internal/composer"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
	"github.com/gauditech/gaudi-sub004/internal/dsl"
	"github.com/gauditech/gaudi-sub004/internal/executor"
	"github.com/gauditech/gaudi-sub004/internal/lockfile"
	"github.com/gauditech/gaudi-sub004/internal/runtime"
	"github.com/gauditech/gaudi-sub004/internal/schema"
	"github.com/gauditech/gaudi-sub004/internal/server"
)

// Client is the main entry point of Gaudi.
//
// Example:
//
//	client, err := gaudi.New(
//	    gaudi.WithDatabaseURL("app.db"),
//	    gaudi.WithBlueprintDir("./blueprint"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	def, err := client.Compile()
//	...
//	h, err := client.Handler(def)
//	http.ListenAndServe(":8080", h)
type Client struct {
	db      *sql.DB
	dialect dialect.Dialect
	config  *Config
}

// New creates a new Client with the given options.
//
// Unless WithSchemaOnly is given, WithDatabaseURL must be provided. The
// dialect is detected from the URL if not explicitly set.
func New(opts ...Option) (*Client, error) {
	cfg := &Config{
		BlueprintDir: "./blueprint",
		HookTimeout:  runtime.DefaultTimeout,
		Timeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = cfg.BlueprintDir
	}

	if cfg.Dialect == "" && cfg.DatabaseURL != "" {
		cfg.Dialect = dsn(cfg.DatabaseURL).dialect()
	}
	if cfg.Dialect == "" && cfg.SchemaOnly {
		cfg.Dialect = "sqlite"
	}
	if !cfg.SchemaOnly && cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	d := dialect.Get(cfg.Dialect)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, cfg.Dialect)
	}
	if cfg.SchemaOnly {
		return &Client{dialect: d, config: cfg}, nil
	}

	db, err := connect(cfg, d)
	if err != nil {
		return nil, err
	}
	return &Client{db: db, dialect: d, config: cfg}, nil
}

// Close closes the database connection and releases resources.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DB returns the underlying database connection, nil for a schema-only client.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the database dialect name.
func (c *Client) Dialect() string {
	return c.dialect.Name()
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return *c.config
}

// -----------------------------------------------------------------------------
// Definition
// -----------------------------------------------------------------------------

// Compile loads every blueprint file of the blueprint directory and composes
// them into a Definition.
func (c *Client) Compile() (*definition.Definition, error) {
	doc, err := dsl.LoadDir(c.config.BlueprintDir)
	if err != nil {
		return nil, &BlueprintError{Dir: c.config.BlueprintDir, Cause: err}
	}
	def, err := composer.Compose(doc)
	if err != nil {
		return nil, &BlueprintError{Dir: c.config.BlueprintDir, Cause: err}
	}
	return def, nil
}

// LoadDefinition reads the compiled Definition file. Without a configured
// file, when the file does not exist, or when its lock file shows that the
// blueprint changed since it was written, the blueprint is compiled instead.
func (c *Client) LoadDefinition() (*definition.Definition, error) {
	path := c.config.DefinitionFile
	if path == "" {
		return c.Compile()
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no compiled definition, compiling blueprint", "file", path)
		return c.Compile()
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// A missing blueprint directory means a deployed Definition; trust it.
	if res, err := lockfile.Check(c.config.BlueprintDir, lockfile.PathFor(path)); err == nil && res != nil && res.Stale() {
		slog.Warn("compiled definition is stale, compiling blueprint", "file", path, "changed", res.Changed())
		return c.Compile()
	}

	def, err := definition.Decode(f)
	if err != nil {
		return nil, &BlueprintError{Dir: path, Cause: err}
	}
	return def, nil
}

// WriteDefinition writes def to the configured Definition file, replacing it
// atomically, and records the blueprint files it was compiled from in the
// lock file next to it.
func (c *Client) WriteDefinition(def *definition.Definition) error {
	path := c.config.DefinitionFile
	if path == "" {
		return errors.New("gaudi: no definition file configured")
	}
	var buf bytes.Buffer
	if err := definition.Encode(&buf, def); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return lockfile.Write(c.config.BlueprintDir, lockfile.PathFor(path))
}

// Fingerprint hashes def per section. Two Definitions with equal roots
// serve the same APIs.
func (c *Client) Fingerprint(def *definition.Definition) (*definition.Fingerprint, error) {
	return definition.ComputeFingerprint(def)
}

// -----------------------------------------------------------------------------
// Database
// -----------------------------------------------------------------------------

// MigrateSQL returns the statements creating the tables of def.
func (c *Client) MigrateSQL(def *definition.Definition) ([]string, error) {
	tables, err := schema.FromDefinition(def)
	if err != nil {
		return nil, err
	}
	return dialect.Statements(c.dialect, schema.Plan(tables, c.dialect.DefersForeignKeys()))
}

// Migrate creates the tables and indexes of def that do not exist yet and
// returns the number of executed statements.
func (c *Client) Migrate(ctx context.Context, def *definition.Definition) (int, error) {
	if c.db == nil {
		return 0, ErrNoDatabase
	}
	tables, err := schema.FromDefinition(def)
	if err != nil {
		return 0, err
	}
	ops := schema.Plan(tables, c.dialect.DefersForeignKeys())
	if err := dialect.Apply(ctx, c.db, c.dialect, ops); err != nil {
		return 0, &MigrationError{Dialect: c.dialect.Name(), Cause: err}
	}
	slog.Info("tables created", "tables", len(tables), "statements", len(ops))
	return len(ops), nil
}

// Populate runs the named populator of def in one transaction and returns
// the number of created records.
func (c *Client) Populate(ctx context.Context, def *definition.Definition, name string) (int, error) {
	if c.db == nil {
		return 0, ErrNoDatabase
	}
	x := executor.New(def, c.dialect, c.hooks(def))
	return x.RunPopulator(ctx, c.db, name)
}

// Handler returns the http.Handler serving every API of def.
func (c *Client) Handler(def *definition.Definition) (*Handler, error) {
	if c.db == nil {
		return nil, ErrNoDatabase
	}
	fp, err := definition.ComputeFingerprint(def)
	if err != nil {
		return nil, err
	}
	hooks := c.hooks(def)
	x := executor.New(def, c.dialect, hooks)
	return &Handler{
		srv:         server.New(x, c.db),
		hooks:       hooks,
		def:         def,
		fingerprint: fp,
	}, nil
}

func (c *Client) hooks(def *definition.Definition) *runtime.HookRunner {
	return runtime.NewHookRunner(def,
		runtime.WithTimeout(c.config.HookTimeout),
		runtime.WithBaseDir(c.config.RuntimeDir),
	)
}

// Handler serves the APIs of one Definition.
type Handler struct {
	srv         *server.Server
	hooks       *runtime.HookRunner
	def         *definition.Definition
	fingerprint *definition.Fingerprint
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.srv.ServeHTTP(w, r)
}

// Routes returns the served endpoints ordered by path.
func (h *Handler) Routes() []server.Route {
	return h.srv.Routes()
}

// Definition returns the served Definition.
func (h *Handler) Definition() *definition.Definition {
	return h.def
}

// Fingerprint returns the fingerprint of the served Definition.
func (h *Handler) Fingerprint() *definition.Fingerprint {
	return h.fingerprint
}

// ResetHooks drops compiled hook programs so edited runtime sources are read
// again on the next call.
func (h *Handler) ResetHooks() {
	h.hooks.Reset()
}
