// Package mediatype derives MIME types for played files from their names.
package mediatype

import (
	"path"
	"strings"

	"github.com/h2non/filetype"
	"go2tv.app/go2tv/v2/utils"
)

const (
	// HLS is the playlist type reported for .m3u8 sources.
	HLS = "application/vnd.apple.mpegurl"
	// AnyVideo is the wildcard used when nothing more specific is known.
	AnyVideo = "video/*"
)

var videoExtensions = []string{
	".mp4", ".mkv", ".avi", ".mov", ".webm", ".m4v", ".wmv",
	".flv", ".ts", ".m2ts", ".mpg", ".mpeg", ".3gp",
}

// extra covers containers the filetype matcher table does not know.
var extra = map[string]string{
	"ts":   "video/mp2t",
	"m2ts": "video/mp2t",
	"3gp":  "video/3gpp",
}

// IsVideo reports whether name carries one of the playable video extensions.
func IsVideo(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// VideoExtensions returns a copy of the playable extension list.
func VideoExtensions() []string {
	return append([]string(nil), videoExtensions...)
}

// Natural returns the type implied by the extension of name, or "" when unknown.
func Natural(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if utils.IsHLSStream(name, "") {
		return HLS
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return ""
	}
	if t := filetype.GetType(ext); t != filetype.Unknown && t.MIME.Value != "" {
		return t.MIME.Value
	}
	return extra[ext]
}
