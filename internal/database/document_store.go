package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/nihongo/pkg/models"
)

// ErrDocumentNotFound is returned by Get when the user has no document yet
var ErrDocumentNotFound = errors.New("progress document not found")

// DocumentStore keeps one progress document per user
type DocumentStore struct {
	db *sqlx.DB
}

// NewDocumentStore creates a store on top of an opened cloud database
func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

type documentRow struct {
	Data        string    `db:"data"`
	LastUpdated time.Time `db:"last_updated"`
}

// Get loads the user's document
func (s *DocumentStore) Get(ctx context.Context, userID string) (*models.CloudDocument, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT data, last_updated FROM user_documents WHERE user_id = ?"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get progress document")
	}

	var doc models.CloudDocument
	if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode progress document")
	}
	doc.LastUpdated = row.LastUpdated
	return &doc, nil
}

// Put merge-writes progress into the user's document. Nested objects are
// merged key by key, arrays are replaced, and fields the write does not
// mention are left alone. The last update time comes from the database clock.
func (s *DocumentStore) Put(ctx context.Context, userID string, progress models.CloudProgress) error {
	patch, err := toObject(map[string]interface{}{"progress": progress})
	if err != nil {
		return errors.Wrap(err, "failed to encode progress")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Make sure a row exists so the lock below covers a user's first write too
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO user_documents (user_id, data, last_updated)
		VALUES (?, '{}', CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO NOTHING
	`), userID)
	if err != nil {
		return errors.Wrap(err, "failed to create progress document")
	}

	query := "SELECT data FROM user_documents WHERE user_id = ?"
	if s.db.DriverName() == DriverPostgres {
		query += " FOR UPDATE"
	}

	var current string
	if err := tx.GetContext(ctx, &current, tx.Rebind(query), userID); err != nil {
		return errors.Wrap(err, "failed to read progress document")
	}

	doc := map[string]interface{}{}
	// An unreadable document is overwritten rather than blocking every future write
	if jsonErr := json.Unmarshal([]byte(current), &doc); jsonErr != nil || doc == nil {
		doc = map[string]interface{}{}
	}

	mergeObjects(doc, patch)
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode progress document")
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(
		"UPDATE user_documents SET data = ?, last_updated = CURRENT_TIMESTAMP WHERE user_id = ?",
	), string(data), userID)
	if err != nil {
		return errors.Wrap(err, "failed to write progress document")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit progress document")
	}
	return nil
}

// Delete removes the user's document
func (s *DocumentStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM user_documents WHERE user_id = ?"), userID)
	if err != nil {
		return errors.Wrap(err, "failed to delete progress document")
	}
	return nil
}

func toObject(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mergeObjects(dst, patch map[string]interface{}) {
	for key, value := range patch {
		patchObj, ok := value.(map[string]interface{})
		if !ok {
			dst[key] = value
			continue
		}
		if dstObj, ok := dst[key].(map[string]interface{}); ok {
			mergeObjects(dstObj, patchObj)
			continue
		}
		dst[key] = patchObj
	}
}
