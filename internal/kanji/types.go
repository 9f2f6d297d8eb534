package kanji

import (
	"encoding/json"
	"strings"

	"github.com/example/nihongo/pkg/models"
)

// apiKanji covers both record shapes Kanji Alive returns: the nested one
// ({"kanji": {"character": ...}}) used by detail and search, and the flat
// one ({"ka_utf": ...}) used by the full listing.
type apiKanji struct {
	Kanji      json.RawMessage `json:"kanji"`
	KaUTF      string          `json:"ka_utf"`
	Meaning    json.RawMessage `json:"meaning"`
	OnyomiJa   string          `json:"onyomi_ja"`
	Onyomi     json.RawMessage `json:"onyomi"`
	KunyomiJa  string          `json:"kunyomi_ja"`
	Kunyomi    json.RawMessage `json:"kunyomi"`
	KStroke    int             `json:"kstroke"`
	Grade      int             `json:"grade"`
	References struct {
		Grade int `json:"grade"`
	} `json:"references"`
}

type nestedKanji struct {
	Character string `json:"character"`
	Meaning   struct {
		English string `json:"english"`
	} `json:"meaning"`
	Onyomi struct {
		Katakana string `json:"katakana"`
		Romaji   string `json:"romaji"`
	} `json:"onyomi"`
	Kunyomi struct {
		Hiragana string `json:"hiragana"`
		Romaji   string `json:"romaji"`
	} `json:"kunyomi"`
	Strokes struct {
		Count int `json:"count"`
	} `json:"strokes"`
}

// rawString returns the value when raw is a JSON string, "" otherwise
func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (a apiKanji) toModel() models.Kanji {
	var nested nestedKanji
	if len(a.Kanji) > 0 && json.Unmarshal(a.Kanji, &nested) != nil {
		// search results may carry the character as a bare string
		nested = nestedKanji{Character: rawString(a.Kanji)}
	}

	strokes := nested.Strokes.Count
	if strokes == 0 {
		strokes = a.KStroke
	}
	grade := a.Grade
	if grade == 0 {
		grade = a.References.Grade
	}

	return models.Kanji{
		Character:       firstNonEmpty(nested.Character, a.KaUTF),
		Meaning:         firstNonEmpty(nested.Meaning.English, rawString(a.Meaning)),
		OnyomiKatakana:  firstNonEmpty(nested.Onyomi.Katakana, a.OnyomiJa),
		OnyomiRomaji:    firstNonEmpty(nested.Onyomi.Romaji, rawString(a.Onyomi)),
		KunyomiHiragana: firstNonEmpty(nested.Kunyomi.Hiragana, a.KunyomiJa),
		KunyomiRomaji:   firstNonEmpty(nested.Kunyomi.Romaji, rawString(a.Kunyomi)),
		Strokes:         strokes,
		Grade:           grade,
	}
}

func toModels(records []apiKanji) []models.Kanji {
	out := make([]models.Kanji, 0, len(records))
	for _, r := range records {
		k := r.toModel()
		if k.Character == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}
