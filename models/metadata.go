package models

// Role is a cast credit on a metadata record.
type Role struct {
	Tag   string `json:"tag"`            // actor name
	Role  string `json:"role,omitempty"` // character
	Thumb string `json:"thumb,omitempty"`
}

// Credit is a non-cast crew credit (director, writer).
type Credit struct {
	Tag string `json:"tag"`
}

// Rating is one score from one provider. Value is a pointer because an
// absent rating must stay absent; a literal 0.0 would read as "rated zero".
type Rating struct {
	Image string   `json:"image,omitempty"` // provider glyph, e.g. "imdb://image.rating"
	Type  string   `json:"type,omitempty"`  // "audience" or "critic"
	Value *float64 `json:"value,omitempty"`
}

// MediaInfo holds the technical specs of the primary media item.
// Empty strings / zero mean the server did not report the field.
type MediaInfo struct {
	VideoResolution string `json:"videoResolution,omitempty"`
	VideoCodec      string `json:"videoCodec,omitempty"`
	AudioCodec      string `json:"audioCodec,omitempty"`
	AudioChannels   int    `json:"audioChannels,omitempty"`
	Container       string `json:"container,omitempty"`
	Bitrate         int    `json:"bitrate,omitempty"`
}

// UltraBlurColors is the 4-corner palette the server derives from the
// artwork, used for background rendering.
type UltraBlurColors struct {
	TopLeft     string `json:"topLeft,omitempty"`
	TopRight    string `json:"topRight,omitempty"`
	BottomRight string `json:"bottomRight,omitempty"`
	BottomLeft  string `json:"bottomLeft,omitempty"`
}

// MovieMetadata is the rich descriptor of a single content item.
// It is replaced wholesale on each fetch; there is no incremental merge.
type MovieMetadata struct {
	RatingKey     string           `json:"ratingKey"`
	Title         string           `json:"title"`
	Year          int              `json:"year,omitempty"`
	Tagline       string           `json:"tagline,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	ContentRating string           `json:"contentRating,omitempty"`
	Duration      int64            `json:"duration"`
	Thumb         string           `json:"thumb,omitempty"`
	Art           string           `json:"art,omitempty"`
	Media         MediaInfo        `json:"media"`
	Roles         []Role           `json:"roles,omitempty"`
	Directors     []Credit         `json:"directors,omitempty"`
	Writers       []Credit         `json:"writers,omitempty"`
	Ratings       []Rating         `json:"ratings,omitempty"`
	Genres        []string         `json:"genres,omitempty"`
	Countries     []string         `json:"countries,omitempty"`
	Palette       *UltraBlurColors `json:"palette,omitempty"`
}
