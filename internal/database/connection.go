package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Supported driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// NormalizeDriver maps user-facing names ("sqlite", "postgresql", ...) to a driver name
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	}
	return "", errors.Errorf("unsupported database type %q", name)
}

// OpenDevice opens the device database that backs the local progress store
// and the kanji catalog. It is always SQLite.
func OpenDevice(path string) (*sqlx.DB, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := initializeDeviceSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenCloud opens the database holding per-user progress documents
func OpenCloud(driver, dsn string) (*sqlx.DB, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	var db *sqlx.DB
	if driver == DriverSQLite {
		db, err = openSQLite(dsn)
	} else {
		db, err = sqlx.Connect(DriverPostgres, dsn)
		if err != nil {
			err = errors.Wrap(err, "failed to connect to postgres")
		}
	}
	if err != nil {
		return nil, err
	}

	if err := initializeCloudSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
	}

	db, err := sqlx.Connect(DriverSQLite, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func initializeDeviceSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS local_storage (
			device_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (device_id, key)
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create local_storage table")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kanji (
			character TEXT PRIMARY KEY,
			meaning TEXT NOT NULL DEFAULT '',
			onyomi_katakana TEXT NOT NULL DEFAULT '',
			onyomi_romaji TEXT NOT NULL DEFAULT '',
			kunyomi_hiragana TEXT NOT NULL DEFAULT '',
			kunyomi_romaji TEXT NOT NULL DEFAULT '',
			strokes INTEGER NOT NULL DEFAULT 0,
			grade INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create kanji table")
	}

	_, err = db.Exec("CREATE INDEX IF NOT EXISTS idx_kanji_grade ON kanji(grade)")
	if err != nil {
		return errors.Wrap(err, "failed to create kanji grade index")
	}
	return nil
}

func initializeCloudSchema(db *sqlx.DB) error {
	dataType := "TEXT"
	if db.DriverName() == DriverPostgres {
		dataType = "JSONB"
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_documents (
			user_id TEXT PRIMARY KEY,
			data ` + dataType + ` NOT NULL,
			last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create user_documents table")
	}
	return nil
}
