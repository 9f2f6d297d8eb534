package database

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// LocalStore is a device-scoped key/value store. Every key holds one
// independently readable JSON blob.
type LocalStore struct {
	db       *sqlx.DB
	deviceID string
}

// NewLocalStore creates a store for the given device
func NewLocalStore(db *sqlx.DB, deviceID string) *LocalStore {
	return &LocalStore{db: db, deviceID: deviceID}
}

// DeviceID returns the device the store is scoped to
func (s *LocalStore) DeviceID() string {
	return s.deviceID
}

// Get returns the value stored under key; ok is false when the key is absent
func (s *LocalStore) Get(key string) ([]byte, bool, error) {
	var value string
	err := s.db.Get(&value, s.db.Rebind("SELECT value FROM local_storage WHERE device_id = ? AND key = ?"), s.deviceID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read key %s", key)
	}
	return []byte(value), true, nil
}

// SetMany writes all entries in one transaction
func (s *LocalStore) SetMany(entries map[string][]byte) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO local_storage (device_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (device_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`)
	for key, value := range entries {
		if _, err := tx.Exec(query, s.deviceID, key, string(value)); err != nil {
			return errors.Wrapf(err, "failed to write key %s", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit local write")
	}
	return nil
}

// Remove deletes the given keys; missing keys are ignored
func (s *LocalStore) Remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM local_storage WHERE device_id = ? AND key IN (?)", s.deviceID, keys)
	if err != nil {
		return errors.Wrap(err, "failed to build delete query")
	}
	if _, err := s.db.Exec(s.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "failed to remove keys")
	}
	return nil
}

// ListDevices returns every device that has stored data
func ListDevices(db *sqlx.DB) ([]string, error) {
	var devices []string
	if err := db.Select(&devices, "SELECT DISTINCT device_id FROM local_storage ORDER BY device_id"); err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}
	return devices, nil
}
