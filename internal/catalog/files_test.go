package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torrplay.app/player/internal/domain"
)

func TestVideoFilesFiltersAndSortsNaturally(t *testing.T) {
	torrent := Torrent{Files: []File{
		{Name: "Episode 10.mkv", Path: "s/Episode 10.mkv"},
		{Name: "sample.txt", Path: "s/sample.txt"},
		{Name: "Episode 2.MP4", Path: "s/Episode 2.MP4"},
		{Name: "cover.jpg", Path: "s/cover.jpg"},
		{Name: "Episode 1.webm", Path: "s/Episode 1.webm"},
	}}

	files := VideoFiles(torrent)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Episode 1.webm", "Episode 2.MP4", "Episode 10.mkv"}, names)
}

func TestSelectFile(t *testing.T) {
	one := []File{{Name: "a.mp4", Path: "x/a.mp4"}}
	many := []File{{Name: "a.mp4", Path: "x/a.mp4"}, {Name: "b.mp4", Path: "x/b.mp4"}}

	f, err := SelectFile(one, "")
	require.NoError(t, err)
	assert.Equal(t, "x/a.mp4", f.Path)

	f, err = SelectFile(many, "x/b.mp4")
	require.NoError(t, err)
	assert.Equal(t, "b.mp4", f.Name)

	cases := []struct {
		name  string
		files []File
		path  string
		code  string
	}{
		{"none", nil, "", domain.CodeNoPlayableFiles},
		{"ambiguous", many, "", domain.CodeAmbiguousFile},
		{"unknown path", many, "x/c.mp4", domain.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SelectFile(tc.files, tc.path)
			var terr *domain.ToolError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tc.code, terr.Code)
		})
	}

	_, err = SelectFile(many, "")
	var terr *domain.ToolError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, []string{"x/a.mp4", "x/b.mp4"}, terr.Details["candidates"])
}
