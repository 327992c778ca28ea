package catalog

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"torrplay.app/player/internal/domain"
	"torrplay.app/player/internal/mediatype"
)

// VideoFiles returns the playable files of t ordered by name, with digit runs
// compared numerically so "Episode 2" sorts before "Episode 10".
func VideoFiles(t Torrent) []File {
	files := make([]File, 0, len(t.Files))
	for _, f := range t.Files {
		if mediatype.IsVideo(f.Name) {
			files = append(files, f)
		}
	}
	c := collate.New(language.Und, collate.Numeric)
	slices.SortStableFunc(files, func(a, b File) int {
		return c.CompareString(a.Name, b.Name)
	})
	return files
}

// SelectFile picks the file to play. An explicit path must name one of the
// candidates; an empty path selects the only candidate when there is exactly one.
func SelectFile(files []File, path string) (File, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		for _, f := range files {
			if f.Path == path {
				return f, nil
			}
		}
		terr := domain.NewToolError(domain.CodeNotFound, "file is not a playable video in this torrent")
		terr.Details = map[string]any{"file_path": path}
		return File{}, terr
	}

	switch len(files) {
	case 0:
		return File{}, domain.NewToolError(domain.CodeNoPlayableFiles, "no playable video files were found in this torrent")
	case 1:
		return files[0], nil
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	terr := domain.NewToolError(domain.CodeAmbiguousFile, "torrent has several video files; choose one")
	terr.SuggestedFixes = []string{"Call play_file again with file_path set to one of the candidates."}
	terr.Details = map[string]any{"candidates": paths}
	return File{}, terr
}

// AsToolError maps a catalog failure to the error reported to tool callers.
func AsToolError(err error) *domain.ToolError {
	var terr *domain.ToolError
	if errors.As(err, &terr) {
		return terr
	}
	if errors.Is(err, ErrNotConfigured) {
		return &domain.ToolError{
			Code:           domain.CodeCatalogError,
			Message:        err.Error(),
			SuggestedFixes: []string{"Set api.base_url in the config file or TORRPLAY_API_URL."},
		}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return domain.NewToolError(domain.CodeNotFound, statusErr.Message)
	}
	return domain.NewToolError(domain.CodeCatalogError, err.Error())
}
