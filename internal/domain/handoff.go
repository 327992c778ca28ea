package domain

// ActionView is the OS "view" action submitted with a playback intent.
const ActionView = "android.intent.action.VIEW"

// Intent is an OS-level request asking another application to view a URL.
type Intent struct {
	Action string            `json:"action"`
	Data   string            `json:"data"`
	Type   string            `json:"type"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// ServiceRequest is a call into a TV platform service bridge.
type ServiceRequest struct {
	Service    string       `json:"service"`
	Method     string       `json:"method"`
	Parameters LaunchParams `json:"parameters"`
}

// URI is the bridge address of the request, e.g. luna://com.webos.applicationManager/launch.
func (r ServiceRequest) URI() string {
	return r.Service + "/" + r.Method
}

type LaunchParams struct {
	ID     string        `json:"id"`
	Params LaunchPayload `json:"params"`
}

type LaunchPayload struct {
	Payload []MediaPayload `json:"payload"`
}

// MediaPayload describes one item for the TV media-discovery app. Fields the
// stream cannot supply carry the platform's unknown sentinels.
type MediaPayload struct {
	FullPath         string   `json:"fullPath"`
	FileName         string   `json:"fileName"`
	MediaType        string   `json:"mediaType"`
	DeviceType       string   `json:"deviceType"`
	Thumbnail        string   `json:"thumbnail"`
	Artist           string   `json:"artist"`
	Album            string   `json:"album"`
	Subtitle         string   `json:"subtitle"`
	LastPlayPosition int      `json:"lastPlayPosition"`
	DLNAInfo         DLNAInfo `json:"dlnaInfo"`
}

type DLNAInfo struct {
	FlagVal       int    `json:"flagVal"`
	CleartextSize string `json:"cleartextSize"`
	ContentLength string `json:"contentLength"`
	OpVal         int    `json:"opVal"`
	ProtocolInfo  string `json:"protocolInfo"`
	Duration      int    `json:"duration"`
}
