package models

// KanaKind selects one of the two syllabaries
type KanaKind string

const (
	Hiragana KanaKind = "hiragana"
	Katakana KanaKind = "katakana"
)

// Valid reports whether k names a supported syllabary
func (k KanaKind) Valid() bool {
	return k == Hiragana || k == Katakana
}

// Alphabet returns the basic characters of the syllabary
func (k KanaKind) Alphabet() []string {
	switch k {
	case Hiragana:
		return HiraganaAlphabet
	case Katakana:
		return KatakanaAlphabet
	}
	return nil
}

// Contains reports whether char is one of the syllabary's basic characters
func (k KanaKind) Contains(char string) bool {
	for _, c := range k.Alphabet() {
		if c == char {
			return true
		}
	}
	return false
}

// KanaAlphabetSize is the number of basic characters in each syllabary
const KanaAlphabetSize = 46

// HiraganaAlphabet holds the 46 basic hiragana in gojūon order
var HiraganaAlphabet = []string{
	"あ", "い", "う", "え", "お",
	"か", "き", "く", "け", "こ",
	"さ", "し", "す", "せ", "そ",
	"た", "ち", "つ", "て", "と",
	"な", "に", "ぬ", "ね", "の",
	"は", "ひ", "ふ", "へ", "ほ",
	"ま", "み", "む", "め", "も",
	"や", "ゆ", "よ",
	"ら", "り", "る", "れ", "ろ",
	"わ", "を",
	"ん",
}

// KatakanaAlphabet holds the 46 basic katakana in gojūon order
var KatakanaAlphabet = []string{
	"ア", "イ", "ウ", "エ", "オ",
	"カ", "キ", "ク", "ケ", "コ",
	"サ", "シ", "ス", "セ", "ソ",
	"タ", "チ", "ツ", "テ", "ト",
	"ナ", "ニ", "ヌ", "ネ", "ノ",
	"ハ", "ヒ", "フ", "ヘ", "ホ",
	"マ", "ミ", "ム", "メ", "モ",
	"ヤ", "ユ", "ヨ",
	"ラ", "リ", "ル", "レ", "ロ",
	"ワ", "ヲ",
	"ン",
}
