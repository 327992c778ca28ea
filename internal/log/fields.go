package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"

	FieldRequestID   = "request_id"
	FieldEnvironment = "environment"
	FieldStrategy    = "strategy"
	FieldState       = "state"
	FieldSourceURL   = "source_url"
	FieldMimeType    = "mime_type"
	FieldInfohash    = "infohash"
	FieldDurationMS  = "duration_ms"
)
