// Package demo provides static substitute data implementing the same
// contracts as the live fetchers, for credential-free exploration.
package demo

import (
	"context"
	"fmt"
	"strings"

	"streamwatch/models"
	"streamwatch/services/plexserver"
)

// LoginID is the fixed identifier accepted by the demo login,
// case-insensitively.
const LoginID = "demo"

// demoUUID is the fixture account's identity; sessions owned by it are
// "yours" in demo mode.
const demoUUID = "3f8a1c2e-demo-4b5d-9e6f-streamwatch"

// Matches reports whether id unlocks demo mode.
func Matches(id string) bool {
	return strings.EqualFold(strings.TrimSpace(id), LoginID)
}

// Credential synthesizes the demo credential.
func Credential() models.Credential {
	return models.Credential{
		Token:     "demo-token",
		AccountID: 101,
		UUID:      demoUUID,
		Email:     "viewer@example.com",
		Username:  "Demo Viewer",
	}
}

// Provider implements the session and metadata fetch contracts from
// fixtures instead of the network.
type Provider struct{}

// NewProvider returns the fixture provider.
func NewProvider() *Provider { return &Provider{} }

// FetchSessions returns the fixture snapshot: one owned video session,
// one foreign video session and one foreign track session, deliberately
// with the owned session not first so the reorder path is exercised.
func (p *Provider) FetchSessions(_ context.Context) ([]models.Session, error) {
	return []models.Session{
		{
			Kind:             models.SessionKindTrack,
			RatingKey:        "demo-301",
			SessionKey:       "31",
			Title:            "Clair de Lune",
			GrandparentTitle: "Claude Debussy",
			Duration:         300000,
			ViewOffset:       120000,
			User:             models.User{ID: 207, Title: "roommate"},
			Player:           models.Player{Title: "Bedroom Speaker", Product: "Plexamp", State: "playing"},
		},
		{
			Kind:       models.SessionKindVideo,
			RatingKey:  "demo-101",
			SessionKey: "12",
			Title:      "Night of the Living Dead",
			Year:       1968,
			Duration:   5760000,
			ViewOffset: 1830000,
			User:       models.User{ID: 101, Title: "Demo Viewer", UUID: demoUUID, Email: "viewer@example.com"},
			Player:     models.Player{Title: "Living Room TV", Product: "Plex for Apple TV", State: "playing"},
			Transcode: &models.TranscodeInfo{
				VideoDecision: "transcode",
				AudioDecision: "copy",
				Progress:      34.5,
				Speed:         1.6,
			},
		},
		{
			Kind:       models.SessionKindVideo,
			RatingKey:  "demo-102",
			SessionKey: "13",
			Title:      "His Girl Friday",
			Year:       1940,
			Duration:   5520000,
			ViewOffset: 420000,
			User:       models.User{ID: 305, Title: "guest"},
			Player:     models.Player{Title: "Chromecast", Product: "Plex for Android", State: "paused"},
		},
	}, nil
}

// FetchMetadata returns the fixture record for a rating key.
func (p *Provider) FetchMetadata(_ context.Context, ratingKey string) (*models.MovieMetadata, error) {
	meta, ok := fixtureMetadata[ratingKey]
	if !ok {
		return nil, fmt.Errorf("demo metadata for %q: %w", ratingKey, plexserver.ErrNotFound)
	}
	// Copy so callers can't mutate the fixture.
	out := *meta
	return &out, nil
}

// FetchCapabilities describes the pretend server.
func (p *Provider) FetchCapabilities(_ context.Context) (*plexserver.Capabilities, error) {
	return &plexserver.Capabilities{
		FriendlyName:      "Demo Server",
		MachineIdentifier: "demo-machine",
		Version:           "1.41.0",
		Platform:          "Linux",
		MyPlexUsername:    "Demo Viewer",
		TranscoderVideo:   true,
		TranscoderAudio:   true,
	}, nil
}

func ratingOf(v float64) *float64 { return &v }

var fixtureMetadata = map[string]*models.MovieMetadata{
	"demo-101": {
		RatingKey:     "demo-101",
		Title:         "Night of the Living Dead",
		Year:          1968,
		Tagline:       "They won't stay dead.",
		Summary:       "Seven people trapped in a Pennsylvania farmhouse fend off a growing horde of the recently deceased.",
		ContentRating: "Not Rated",
		Duration:      5760000,
		Media: models.MediaInfo{
			VideoResolution: "1080",
			VideoCodec:      "h264",
			AudioCodec:      "aac",
			AudioChannels:   2,
			Container:       "mkv",
			Bitrate:         8200,
		},
		Roles: []models.Role{
			{Tag: "Duane Jones", Role: "Ben"},
			{Tag: "Judith O'Dea", Role: "Barbra"},
			{Tag: "Karl Hardman", Role: "Harry Cooper"},
		},
		Directors: []models.Credit{{Tag: "George A. Romero"}},
		Writers:   []models.Credit{{Tag: "John Russo"}, {Tag: "George A. Romero"}},
		Ratings: []models.Rating{
			{Image: "imdb://image.rating", Type: "audience", Value: ratingOf(7.8)},
			{Image: "rottentomatoes://image.rating.ripe", Type: "critic", Value: ratingOf(9.5)},
		},
		Genres:    []string{"Horror", "Thriller"},
		Countries: []string{"United States of America"},
		Palette: &models.UltraBlurColors{
			TopLeft:     "1a1a2e",
			TopRight:    "16213e",
			BottomRight: "0f3460",
			BottomLeft:  "101010",
		},
	},
	"demo-102": {
		RatingKey:     "demo-102",
		Title:         "His Girl Friday",
		Year:          1940,
		Tagline:       "The funniest hit of the town!",
		Summary:       "A newspaper editor uses every trick in the book to keep his ace reporter ex-wife from remarrying.",
		ContentRating: "Approved",
		Duration:      5520000,
		Media: models.MediaInfo{
			VideoResolution: "720",
			VideoCodec:      "h264",
			AudioCodec:      "ac3",
			AudioChannels:   2,
			Container:       "mp4",
			Bitrate:         4500,
		},
		Roles: []models.Role{
			{Tag: "Cary Grant", Role: "Walter Burns"},
			{Tag: "Rosalind Russell", Role: "Hildy Johnson"},
		},
		Directors: []models.Credit{{Tag: "Howard Hawks"}},
		Writers:   []models.Credit{{Tag: "Charles Lederer"}},
		Ratings: []models.Rating{
			{Image: "imdb://image.rating", Type: "audience", Value: ratingOf(7.8)},
		},
		Genres:    []string{"Comedy", "Romance"},
		Countries: []string{"United States of America"},
		Palette: &models.UltraBlurColors{
			TopLeft:     "2e2a1a",
			TopRight:    "3e3016",
			BottomRight: "60450f",
			BottomLeft:  "181008",
		},
	},
}
