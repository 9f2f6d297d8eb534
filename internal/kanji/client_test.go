package kanji

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allPayload = `[
	{"kanji": {"character": "水", "meaning": {"english": "water"}, "onyomi": {"katakana": "スイ", "romaji": "sui"},
	  "kunyomi": {"hiragana": "みず", "romaji": "mizu"}, "strokes": {"count": 4}}, "grade": 1},
	{"ka_utf": "海", "meaning": "sea", "onyomi_ja": "カイ", "onyomi": "kai", "kunyomi_ja": "うみ", "kunyomi": "umi", "kstroke": 9, "grade": 2},
	{"ka_utf": "", "meaning": "broken"}
]`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/kanji/all", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-RapidAPI-Key"))
		assert.Equal(t, "kanji.test", r.Header.Get("X-RapidAPI-Host"))
		w.Write([]byte(allPayload))
	})
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/water" {
			w.Write([]byte(`[{"kanji": {"character": "水", "stroke": 4}, "radical": {"character": "水"}}]`))
			return
		}
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/kanji/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/kanji/水" {
			w.Write([]byte(`{"kanji": {"character": "水", "meaning": {"english": "water"}, "strokes": {"count": 4}},
				"references": {"grade": 1}}`))
			return
		}
		w.Write([]byte(`{"Error": "No kanji found."}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret", APIHost: "kanji.test", RatePerSecond: 1000, Burst: 10})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClientAllNormalizesBothShapes(t *testing.T) {
	c := newTestClient(t, newTestServer(t))

	list, err := c.All(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "水", list[0].Character)
	assert.Equal(t, "water", list[0].Meaning)
	assert.Equal(t, "スイ", list[0].OnyomiKatakana)
	assert.Equal(t, "mizu", list[0].KunyomiRomaji)
	assert.Equal(t, 4, list[0].Strokes)
	assert.Equal(t, 1, list[0].Grade)

	assert.Equal(t, "海", list[1].Character)
	assert.Equal(t, "sea", list[1].Meaning)
	assert.Equal(t, "うみ", list[1].KunyomiHiragana)
	assert.Equal(t, 9, list[1].Strokes)
	assert.Equal(t, 2, list[1].Grade)
}

func TestClientSearchAndDetail(t *testing.T) {
	c := newTestClient(t, newTestServer(t))
	ctx := context.Background()

	hits, err := c.Search(ctx, "water")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "水", hits[0].Character)

	hits, err = c.Search(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, hits)

	detail, err := c.Detail(ctx, "水")
	require.NoError(t, err)
	assert.Equal(t, "water", detail.Meaning)
	assert.Equal(t, 1, detail.Grade)

	_, err = c.Detail(ctx, "龘")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.All(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSearchResultWithBareCharacter(t *testing.T) {
	rec := apiKanji{Kanji: []byte(`"木"`)}
	assert.Equal(t, "木", rec.toModel().Character)
}
