package db

import (
	"context"
	"embed"
	"os"
	"path/filepath"
	"strings"

	"rapture/utils"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrations embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// RecordKey identifies one persisted document. No two documents share a key.
type RecordKey struct {
	Name      string
	Timestamp string
	Source    string
	GameType  string
	Axis      string
}

func (k RecordKey) String() string {
	return strings.Join([]string{k.Source, k.GameType, k.Timestamp, k.Axis, k.Name}, "|")
}

// Document is one player's payload for one snapshot, game type and axis.
type Document struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	Snapshot   string `db:"snapshot"`
	Season     string `db:"season"`
	SeasonType string `db:"season_type"`
	Axis       string `db:"axis"`
	Source     string `db:"source"`
	Payload    string `db:"payload"`
}

// NewDocument encodes fields as the document payload.
func NewDocument(key RecordKey, season string, fields map[string]any) (Document, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := sonic.MarshalString(fields)
	if err != nil {
		return Document{}, utils.ErrorWithTrace(err)
	}
	return Document{
		Name:       key.Name,
		Snapshot:   key.Timestamp,
		Season:     season,
		SeasonType: key.GameType,
		Axis:       key.Axis,
		Source:     key.Source,
		Payload:    payload,
	}, nil
}

func (d Document) Key() RecordKey {
	return RecordKey{Name: d.Name, Timestamp: d.Snapshot, Source: d.Source, GameType: d.SeasonType, Axis: d.Axis}
}

// Fields decodes the payload.
func (d Document) Fields() (map[string]any, error) {
	out := map[string]any{}
	if err := sonic.UnmarshalString(d.Payload, &out); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return out, nil
}

// Store is the document sink. It is safe for concurrent single-document
// writes; there are no multi-document transactions.
type Store struct {
	db     *sqlx.DB
	driver string
	dsn    string
}

// Open connects to the database. For sqlite3 the dsn is a file path whose
// directory is created if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
	case DriverPostgres:
	default:
		return nil, errors.Newf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, utils.ErrorWithTrace(err)
	}
	return &Store{db: db, driver: driver, dsn: dsn}, nil
}

// Migrate applies the embedded migrations for the store's driver.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrations, "migrations/"+s.driver)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	dbURL := s.dsn
	if s.driver == DriverSQLite {
		dbURL = "sqlite3://" + s.dsn
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

// Exists reports whether a document with key is already stored.
func (s *Store) Exists(ctx context.Context, key RecordKey) (bool, error) {
	query := s.db.Rebind(`
		SELECT COUNT(*) FROM documents
		WHERE name = ? AND snapshot = ? AND source = ? AND season_type = ? AND axis = ?
	`)
	var count int
	if err := s.db.GetContext(ctx, &count, query, key.Name, key.Timestamp, key.Source, key.GameType, key.Axis); err != nil {
		return false, utils.ErrorWithTrace(err)
	}
	return count > 0, nil
}

// Insert writes doc unless its key is already present. It reports whether a
// row was written.
func (s *Store) Insert(ctx context.Context, doc Document) (bool, error) {
	query := `
		INSERT INTO documents (
			name, snapshot, season, season_type, axis, source, payload
		) VALUES (
			:name, :snapshot, :season, :season_type, :axis, :source, :payload
		) ON CONFLICT DO NOTHING
	`
	res, err := s.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return false, utils.ErrorWithTrace(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, utils.ErrorWithTrace(err)
	}
	return n > 0, nil
}

// Documents lists stored documents for a source, oldest snapshot first.
func (s *Store) Documents(ctx context.Context, source string) ([]Document, error) {
	query := s.db.Rebind(`
		SELECT id, name, snapshot, season, season_type, axis, source, payload
		FROM documents WHERE source = ? ORDER BY snapshot, name, season_type, axis
	`)
	docs := []Document{}
	if err := s.db.SelectContext(ctx, &docs, query, source); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return docs, nil
}

// Count is the total number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, utils.ErrorWithTrace(err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
