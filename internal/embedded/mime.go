package embedded

import (
	"strings"

	"torrplay.app/player/internal/mediatype"
)

// coercedMimeType replaces the declared type for containers the engine misdetects.
const coercedMimeType = "video/mp4"

var misdetectedContainers = []string{".mkv"}

// ResolveMimeType picks the type handed to the engine for a file called name.
// Misdetected containers are coerced to video/mp4; everything else keeps the
// declared type, or the natural type of its extension when none was declared.
func ResolveMimeType(name, declared string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, ext := range misdetectedContainers {
		if strings.HasSuffix(lower, ext) {
			return coercedMimeType
		}
	}
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return mediatype.Natural(name)
}
