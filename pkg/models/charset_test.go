package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharSetAddIsIdempotent(t *testing.T) {
	s := CharSet{}
	assert.True(t, s.Add("水"))
	assert.False(t, s.Add("水"))
	assert.Equal(t, 1, s.Len())
}

func TestCharSetJSONDropsDuplicates(t *testing.T) {
	var s CharSet
	require.NoError(t, json.Unmarshal([]byte(`["火","水","火"]`), &s))
	assert.Equal(t, 2, s.Len())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["水","火"]`, string(data))
}

func TestKanaAlphabets(t *testing.T) {
	assert.Len(t, HiraganaAlphabet, KanaAlphabetSize)
	assert.Len(t, KatakanaAlphabet, KanaAlphabetSize)
	assert.Equal(t, KanaAlphabetSize, NewCharSet(HiraganaAlphabet...).Len())
	assert.Equal(t, KanaAlphabetSize, NewCharSet(KatakanaAlphabet...).Len())
	assert.True(t, Hiragana.Contains("あ"))
	assert.False(t, Hiragana.Contains("ア"))
	assert.False(t, KanaKind("romaji").Valid())
}
