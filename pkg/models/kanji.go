package models

import "time"

// Kanji is a catalog entry for a single character
type Kanji struct {
	Character       string    `json:"character" db:"character"`
	Meaning         string    `json:"meaning" db:"meaning"`
	OnyomiKatakana  string    `json:"onyomiKatakana" db:"onyomi_katakana"`
	OnyomiRomaji    string    `json:"onyomiRomaji" db:"onyomi_romaji"`
	KunyomiHiragana string    `json:"kunyomiHiragana" db:"kunyomi_hiragana"`
	KunyomiRomaji   string    `json:"kunyomiRomaji" db:"kunyomi_romaji"`
	Strokes         int       `json:"strokes" db:"strokes"`
	Grade           int       `json:"grade" db:"grade"` // Japanese school grade, 0 when unknown
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}
