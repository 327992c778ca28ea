package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
}

func TestListTorrents(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"limit":10,"offset":0,"total":1,"torrents":[{"infohash":"abc","name":"Show","total_size":2048,"piece_count":4,"files":[{"name":"e1.mkv","path":"Show/e1.mkv","length":1024}]}]}`))
	})

	resp, err := c.ListTorrents(context.Background(), ListParams{
		Categories: []string{"tv", "anime"},
		Names:      []string{"Show"},
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/torrents", gotPath)
	assert.Equal(t, "categories=tv&categories=anime&limit=10&names=Show", gotQuery)

	require.Len(t, resp.Torrents, 1)
	torrent := resp.Torrents[0]
	assert.Equal(t, "abc", torrent.Infohash)
	assert.Equal(t, int64(2048), torrent.TotalSize)
	assert.Equal(t, 4, torrent.PieceCount)
	assert.Equal(t, "Show/e1.mkv", torrent.Files[0].Path)
	assert.Equal(t, "Show", torrent.DisplayTitle())
}

func TestListTorrentsWithoutParams(t *testing.T) {
	var gotURI string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte(`{"torrents":[]}`))
	})
	_, err := c.ListTorrents(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/torrents", gotURI)
}

func TestGetTorrentAndSystemInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/torrents/abc":
			_, _ = w.Write([]byte(`{"infohash":"abc","name":"n","title":"Nice Title"}`))
		case "/api/system/info":
			_, _ = w.Write([]byte(`{"version":"1.2.3","commit":"deadbeef","uptime":42.5,"build_date":"2025-01-01"}`))
		default:
			http.NotFound(w, r)
		}
	})

	torrent, err := c.GetTorrent(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Nice Title", torrent.DisplayTitle())

	info, err := c.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, 42.5, info.Uptime)
}

func TestErrorBodies(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message", http.StatusNotFound, `{"message":"torrent not found"}`, "torrent not found"},
		{"detail", http.StatusUnprocessableEntity, `{"detail":"invalid infohash"}`, "invalid infohash"},
		{"plain", http.StatusBadGateway, `upstream down`, "request failed with status 502: Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.GetTorrent(context.Background(), "abc")
			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tc.status, statusErr.StatusCode)
			assert.EqualError(t, err, tc.want)
		})
	}
}

func TestNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	info, err := c.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SystemInfo{}, info)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.Configured())

	_, err := c.ListTorrents(context.Background(), ListParams{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.StreamURL("abc", "a.mp4")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStreamURL(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://host:8080/"})
	got, err := c.StreamURL("abc", "Season 1/Ep 01 (final)!.mkv")
	require.NoError(t, err)
	assert.Equal(t, "http://host:8080/api/v1/stream/abc?filepath=Season%201%2FEp%2001%20(final)!.mkv", got)
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "a-b_c.d!e~f*g'h(i)j", EncodeURIComponent("a-b_c.d!e~f*g'h(i)j"))
	assert.Equal(t, "%20%2B%26%3D%3F%23%2F", EncodeURIComponent(" +&=?#/"))
	assert.Equal(t, "%D1%84%D0%B8%D0%BB%D1%8C%D0%BC", EncodeURIComponent("фильм"))
}
