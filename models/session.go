package models

// SessionKind distinguishes the two playback variants reported by the server.
type SessionKind string

const (
	SessionKindVideo SessionKind = "video"
	SessionKindTrack SessionKind = "track"
)

// User identifies the account a session belongs to. Only used for
// ownership comparison against the local credential, never persisted.
type User struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	UUID  string `json:"uuid,omitempty"`
	Email string `json:"email,omitempty"`
}

// Player describes the device a session is playing on.
type Player struct {
	Title   string `json:"title"`
	Product string `json:"product,omitempty"`
	State   string `json:"state,omitempty"` // "playing", "paused", "buffering"
	Address string `json:"address,omitempty"`
}

// TranscodeInfo describes an active transcode for a session. All fields
// are optional; the whole struct is absent for direct-play sessions.
type TranscodeInfo struct {
	VideoDecision string  `json:"videoDecision,omitempty"`
	AudioDecision string  `json:"audioDecision,omitempty"`
	Progress      float64 `json:"progress,omitempty"`
	Speed         float64 `json:"speed,omitempty"`
	Throttled     bool    `json:"throttled,omitempty"`
}

// Session is one active playback stream from a server snapshot.
// Identity across snapshots is RatingKey equality, not list position;
// SessionKey is ephemeral and may change across reconnects.
type Session struct {
	Kind             SessionKind    `json:"kind"`
	RatingKey        string         `json:"ratingKey"`
	SessionKey       string         `json:"sessionKey"`
	Title            string         `json:"title"`
	GrandparentTitle string         `json:"grandparentTitle,omitempty"` // artist for tracks, show for episodes
	Year             int            `json:"year,omitempty"`
	Thumb            string         `json:"thumb,omitempty"`
	Art              string         `json:"art,omitempty"`
	Duration         int64          `json:"duration"`   // milliseconds, 0 when unreported
	ViewOffset       int64          `json:"viewOffset"` // milliseconds
	User             User           `json:"user"`
	Player           Player         `json:"player"`
	Transcode        *TranscodeInfo `json:"transcode,omitempty"`
}
