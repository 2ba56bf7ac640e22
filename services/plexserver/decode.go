package plexserver

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"

	"streamwatch/models"
)

// The server speaks attribute-bearing XML with optional attributes
// throughout, so everything here decodes through a token stream into
// accumulators instead of fixed unmarshal structs. Absent durations
// default to 0; absent ratings and technical fields stay absent, since
// a zeroed rating reads as a real score.

// decodeSessions parses a /status/sessions container. Zero Video/Track
// children is a valid empty snapshot, not an error.
func decodeSessions(data []byte) ([]models.Session, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	sessions := []models.Session{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "MediaContainer":
			// container root, descend
		case "Video":
			s, err := decodeSession(dec, start, models.SessionKindVideo)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, s)
		case "Track":
			s, err := decodeSession(dec, start, models.SessionKindTrack)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, s)
		default:
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Err: err}
			}
		}
	}
	return sessions, nil
}

// decodeSession accumulates one Video or Track element including its
// nested User/Player/TranscodeSession children. Nested elements merge
// into the parent record last-value-wins in document order.
func decodeSession(dec *xml.Decoder, start xml.StartElement, kind models.SessionKind) (models.Session, error) {
	s := models.Session{
		Kind:             kind,
		RatingKey:        attr(start, "ratingKey"),
		SessionKey:       attr(start, "sessionKey"),
		Title:            attr(start, "title"),
		GrandparentTitle: attr(start, "grandparentTitle"),
		Year:             attrInt(start, "year"),
		Thumb:            attr(start, "thumb"),
		Art:              attr(start, "art"),
		Duration:         attrInt64(start, "duration"),
		ViewOffset:       attrInt64(start, "viewOffset"),
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return models.Session{}, &DecodeError{Err: err}
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "User":
				s.User = models.User{
					ID:    attrInt(el, "id"),
					Title: attr(el, "title"),
					UUID:  attr(el, "uuid"),
					Email: attr(el, "email"),
				}
			case "Player":
				s.Player = models.Player{
					Title:   attr(el, "title"),
					Product: attr(el, "product"),
					State:   attr(el, "state"),
					Address: attr(el, "address"),
				}
			case "TranscodeSession":
				s.Transcode = &models.TranscodeInfo{
					VideoDecision: attr(el, "videoDecision"),
					AudioDecision: attr(el, "audioDecision"),
					Progress:      attrFloat(el, "progress"),
					Speed:         attrFloat(el, "speed"),
					Throttled:     attr(el, "throttled") == "1",
				}
			}
			if err := dec.Skip(); err != nil {
				return models.Session{}, &DecodeError{Err: err}
			}
		case xml.EndElement:
			if el.Name.Local == start.Name.Local {
				return s, nil
			}
		}
	}
}

// decodeMetadata parses a /library/metadata/{id} container down to a
// single MovieMetadata record.
func decodeMetadata(data []byte) (*models.MovieMetadata, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "MediaContainer":
			// descend
		case "Video", "Movie":
			return decodeMetadataRecord(dec, start)
		default:
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Err: err}
			}
		}
	}
}

func decodeMetadataRecord(dec *xml.Decoder, start xml.StartElement) (*models.MovieMetadata, error) {
	m := &models.MovieMetadata{
		RatingKey:     attr(start, "ratingKey"),
		Title:         attr(start, "title"),
		Year:          attrInt(start, "year"),
		Tagline:       attr(start, "tagline"),
		Summary:       attr(start, "summary"),
		ContentRating: attr(start, "contentRating"),
		Duration:      attrInt64(start, "duration"),
		Thumb:         attr(start, "thumb"),
		Art:           attr(start, "art"),
	}
	// Top-level audienceRating/rating attributes predate the Rating
	// child elements; keep them as ratings when present.
	if v, ok := attrFloatOpt(start, "audienceRating"); ok {
		m.Ratings = append(m.Ratings, models.Rating{
			Image: attr(start, "audienceRatingImage"),
			Type:  "audience",
			Value: v,
		})
	}
	if v, ok := attrFloatOpt(start, "rating"); ok {
		m.Ratings = append(m.Ratings, models.Rating{
			Image: attr(start, "ratingImage"),
			Type:  "critic",
			Value: v,
		})
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "Media":
				// Last-value-wins when several media items exist.
				m.Media = models.MediaInfo{
					VideoResolution: attr(el, "videoResolution"),
					VideoCodec:      attr(el, "videoCodec"),
					AudioCodec:      attr(el, "audioCodec"),
					AudioChannels:   attrInt(el, "audioChannels"),
					Container:       attr(el, "container"),
					Bitrate:         attrInt(el, "bitrate"),
				}
			case "Role":
				m.Roles = append(m.Roles, models.Role{
					Tag:   attr(el, "tag"),
					Role:  attr(el, "role"),
					Thumb: attr(el, "thumb"),
				})
			case "Director":
				m.Directors = append(m.Directors, models.Credit{Tag: attr(el, "tag")})
			case "Writer":
				m.Writers = append(m.Writers, models.Credit{Tag: attr(el, "tag")})
			case "Genre":
				if tag := attr(el, "tag"); tag != "" {
					m.Genres = append(m.Genres, tag)
				}
			case "Country":
				if tag := attr(el, "tag"); tag != "" {
					m.Countries = append(m.Countries, tag)
				}
			case "Rating":
				value, _ := attrFloatOpt(el, "value")
				m.Ratings = append(m.Ratings, models.Rating{
					Image: attr(el, "image"),
					Type:  attr(el, "type"),
					Value: value,
				})
			case "UltraBlurColors":
				m.Palette = &models.UltraBlurColors{
					TopLeft:     attr(el, "topLeft"),
					TopRight:    attr(el, "topRight"),
					BottomRight: attr(el, "bottomRight"),
					BottomLeft:  attr(el, "bottomLeft"),
				}
			}
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Err: err}
			}
		case xml.EndElement:
			if el.Name.Local == start.Name.Local {
				return m, nil
			}
		}
	}
}

// decodeCapabilities parses the server root container's attributes.
func decodeCapabilities(data []byte) (*Capabilities, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Err: errors.New("no MediaContainer element")}
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "MediaContainer" {
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Err: err}
			}
			continue
		}
		return &Capabilities{
			FriendlyName:      attr(start, "friendlyName"),
			MachineIdentifier: attr(start, "machineIdentifier"),
			Version:           attr(start, "version"),
			Platform:          attr(start, "platform"),
			MyPlexUsername:    attr(start, "myPlexUsername"),
			TranscoderVideo:   attr(start, "transcoderVideo") == "1",
			TranscoderAudio:   attr(start, "transcoderAudio") == "1",
		}, nil
	}
}

// decodeActivities parses the /activities container. Zero children is
// a valid idle server.
func decodeActivities(data []byte) ([]Activity, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	activities := []Activity{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "MediaContainer":
			// descend
		case "Activity":
			var progress float64
			if v, ok := attrFloatOpt(start, "progress"); ok {
				progress = *v
			}
			activities = append(activities, Activity{
				UUID:     attr(start, "uuid"),
				Type:     attr(start, "type"),
				Title:    attr(start, "title"),
				Subtitle: attr(start, "subtitle"),
				Progress: progress,
			})
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Err: err}
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Err: err}
			}
		}
	}
	return activities, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func attrInt(el xml.StartElement, name string) int {
	v, err := strconv.Atoi(attr(el, name))
	if err != nil {
		return 0
	}
	return v
}

func attrInt64(el xml.StartElement, name string) int64 {
	v, err := strconv.ParseInt(attr(el, name), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func attrFloat(el xml.StartElement, name string) float64 {
	v, err := strconv.ParseFloat(attr(el, name), 64)
	if err != nil {
		return 0
	}
	return v
}

// attrFloatOpt distinguishes "absent" from "zero" for fields where a
// default would be misleading.
func attrFloatOpt(el xml.StartElement, name string) (*float64, bool) {
	raw := attr(el, name)
	if raw == "" {
		return nil, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
