package catalog

// Torrent is a catalog item as served by the backend.
type Torrent struct {
	Category   string `json:"category,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	Files      []File `json:"files"`
	Infohash   string `json:"infohash"`
	Name       string `json:"name"`
	PieceCount int    `json:"piece_count"`
	PieceSize  int64  `json:"piece_size"`
	Poster     string `json:"poster,omitempty"`
	Title      string `json:"title,omitempty"`
	TotalSize  int64  `json:"total_size"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// DisplayTitle prefers the user-assigned title over the torrent name.
func (t Torrent) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

type File struct {
	Length int64  `json:"length"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

type TorrentsResponse struct {
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	Torrents []Torrent `json:"torrents"`
	Total    int       `json:"total"`
}

type ListParams struct {
	Categories []string
	Infohashes []string
	Names      []string
	Limit      int
	Offset     int
}

type SystemInfo struct {
	BuildDate string  `json:"build_date"`
	Commit    string  `json:"commit"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version"`
}

type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}
