package transport

// Snapshot is the playback state handed to presentation layers.
type Snapshot struct {
	Seq         uint64   `json:"seq"`
	Status      string   `json:"status"`
	CurrentTime float64  `json:"current_time"`
	Duration    *float64 `json:"duration"`
	Volume      float64  `json:"volume"`

	CurrentLabel  string `json:"current_label"`
	DurationLabel string `json:"duration_label"`

	AssetID     string `json:"asset_id,omitempty"`
	AssetName   string `json:"asset_name,omitempty"`
	Decoding    bool   `json:"decoding"`
	DecodeError string `json:"decode_error,omitempty"`

	Verdict     string `json:"verdict,omitempty"`
	MarkerCount int    `json:"marker_count"`
}

