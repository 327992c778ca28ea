package domain

const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeNoPlayableFiles = "NO_PLAYABLE_FILES"
	CodeAmbiguousFile   = "AMBIGUOUS_FILE"
	CodeNoActiveSession = "NO_ACTIVE_SESSION"
	CodeCatalogError    = "CATALOG_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

type ToolError struct {
	Code           string         `json:"code"`
	Message        string         `json:"message"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func NewToolError(code, message string) *ToolError {
	return &ToolError{Code: code, Message: message}
}
