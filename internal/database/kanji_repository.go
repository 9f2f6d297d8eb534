package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/nihongo/pkg/models"
)

// ErrKanjiNotFound is returned when the catalog has no entry for a character
var ErrKanjiNotFound = errors.New("kanji not found")

// KanjiRepository handles the device's kanji catalog
type KanjiRepository struct {
	db *sqlx.DB
}

// NewKanjiRepository creates a new repository instance
func NewKanjiRepository(db *sqlx.DB) *KanjiRepository {
	return &KanjiRepository{db: db}
}

const kanjiColumns = `character, meaning, onyomi_katakana, onyomi_romaji,
	kunyomi_hiragana, kunyomi_romaji, strokes, grade, updated_at`

// GetAll returns every catalog entry
func (r *KanjiRepository) GetAll(ctx context.Context) ([]models.Kanji, error) {
	var entries []models.Kanji
	err := r.db.SelectContext(ctx, &entries, "SELECT "+kanjiColumns+" FROM kanji ORDER BY grade, strokes, character")
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kanji")
	}
	return entries, nil
}

// GetByGrade returns entries taught in the given school grade
func (r *KanjiRepository) GetByGrade(ctx context.Context, grade int) ([]models.Kanji, error) {
	var entries []models.Kanji
	query := r.db.Rebind("SELECT " + kanjiColumns + " FROM kanji WHERE grade = ? ORDER BY strokes, character")
	if err := r.db.SelectContext(ctx, &entries, query, grade); err != nil {
		return nil, errors.Wrap(err, "failed to get kanji by grade")
	}
	return entries, nil
}

// GetByCharacter returns a single entry
func (r *KanjiRepository) GetByCharacter(ctx context.Context, character string) (*models.Kanji, error) {
	var entry models.Kanji
	query := r.db.Rebind("SELECT " + kanjiColumns + " FROM kanji WHERE character = ?")
	err := r.db.GetContext(ctx, &entry, query, character)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKanjiNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kanji")
	}
	return &entry, nil
}

// Search matches the character itself or a substring of its meaning
func (r *KanjiRepository) Search(ctx context.Context, query string) ([]models.Kanji, error) {
	var entries []models.Kanji
	pattern := "%" + query + "%"
	sqlQuery := r.db.Rebind(`
		SELECT ` + kanjiColumns + ` FROM kanji
		WHERE character = ? OR LOWER(meaning) LIKE LOWER(?)
		ORDER BY grade, strokes
	`)
	if err := r.db.SelectContext(ctx, &entries, sqlQuery, query, pattern); err != nil {
		return nil, errors.Wrap(err, "failed to search kanji")
	}
	return entries, nil
}

// Count returns the number of catalog entries
func (r *KanjiRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM kanji"); err != nil {
		return 0, errors.Wrap(err, "failed to count kanji")
	}
	return n, nil
}

// UpsertMany stores entries in one transaction and reports how many were
// created and how many replaced an existing row
func (r *KanjiRepository) UpsertMany(ctx context.Context, entries []models.Kanji) (created, updated int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	exists := tx.Rebind("SELECT COUNT(*) FROM kanji WHERE character = ?")
	upsert := tx.Rebind(`
		INSERT INTO kanji (character, meaning, onyomi_katakana, onyomi_romaji,
			kunyomi_hiragana, kunyomi_romaji, strokes, grade, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (character) DO UPDATE SET
			meaning = excluded.meaning,
			onyomi_katakana = excluded.onyomi_katakana,
			onyomi_romaji = excluded.onyomi_romaji,
			kunyomi_hiragana = excluded.kunyomi_hiragana,
			kunyomi_romaji = excluded.kunyomi_romaji,
			strokes = excluded.strokes,
			grade = excluded.grade,
			updated_at = CURRENT_TIMESTAMP
	`)

	for _, k := range entries {
		if k.Character == "" {
			continue
		}
		var n int
		if err := tx.GetContext(ctx, &n, exists, k.Character); err != nil {
			return 0, 0, errors.Wrapf(err, "failed to check kanji %s", k.Character)
		}
		_, err := tx.ExecContext(ctx, upsert,
			k.Character,
			k.Meaning,
			k.OnyomiKatakana,
			k.OnyomiRomaji,
			k.KunyomiHiragana,
			k.KunyomiRomaji,
			k.Strokes,
			k.Grade,
		)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "failed to store kanji %s", k.Character)
		}
		if n > 0 {
			updated++
		} else {
			created++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, errors.Wrap(err, "failed to commit kanji")
	}
	return created, updated, nil
}
