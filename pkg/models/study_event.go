package models

import "time"

// StudyType names what kind of item a study event is about
type StudyType string

const (
	StudyKanji    StudyType = "kanji"
	StudyHiragana StudyType = "hiragana"
	StudyKatakana StudyType = "katakana"
)

// StudySessionLimit is the number of study events kept on a device
const StudySessionLimit = 100

// StudyEvent records a single "learned" action on this device
type StudyEvent struct {
	ID   string    `json:"id"`
	Type StudyType `json:"type"`
	Item string    `json:"item"`
	Date time.Time `json:"date"`
}

// TodayStats counts study events since local midnight
type TodayStats struct {
	Total    int `json:"total"`
	Kanji    int `json:"kanji"`
	Hiragana int `json:"hiragana"`
	Katakana int `json:"katakana"`
}
