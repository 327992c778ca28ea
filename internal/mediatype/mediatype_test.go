package mediatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("Show.S01E01.MKV"))
	assert.True(t, IsVideo("dir/clip.webm"))
	assert.False(t, IsVideo("readme.txt"))
	assert.False(t, IsVideo("poster.jpg"))
	assert.False(t, IsVideo(""))
}

func TestNatural(t *testing.T) {
	cases := map[string]string{
		"clip.webm":  "video/webm",
		"movie.MP4":  "video/mp4",
		"movie.mkv":  "video/x-matroska",
		"stream.ts":  "video/mp2t",
		"noext":      "",
		"":           "",
		"notes.zzzz": "",
	}
	for name, want := range cases {
		assert.Equal(t, want, Natural(name), name)
	}
}

func TestVideoExtensionsIsACopy(t *testing.T) {
	exts := VideoExtensions()
	exts[0] = ".bogus"
	assert.Equal(t, ".mp4", VideoExtensions()[0])
}
