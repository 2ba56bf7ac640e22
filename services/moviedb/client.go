package moviedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	tmdbProfileSize  = "w185"
)

// ErrNotConfigured means no API key is set; person lookups are an
// optional enrichment and callers degrade gracefully.
var ErrNotConfigured = errors.New("moviedb api key not configured")

// Client is a read-only client for the movie metadata/ratings service.
// Used for person lookup and filmographies behind the cast view.
type Client struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewClient creates a metadata-service client.
func NewClient(apiKey, language string) *Client {
	if language == "" {
		language = "en"
	}
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		baseURL:     tmdbBaseURL,
		httpc:       &http.Client{Timeout: 15 * time.Second},
		minInterval: 20 * time.Millisecond,
	}
}

// NewClientWithBaseURL is for tests pointing at a local stub.
func NewClientWithBaseURL(apiKey, language, baseURL string) *Client {
	c := NewClient(apiKey, language)
	c.baseURL = baseURL
	return c
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// Person is a resolved cast or crew member.
type Person struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	KnownFor   string `json:"knownFor,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

// PersonCredit is one filmography entry.
type PersonCredit struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	Character string `json:"character,omitempty"`
	MediaType string `json:"mediaType"`
}

// doGET performs an HTTP GET with rate limiting and retry with
// exponential backoff on throttling and server errors.
func (c *Client) doGET(ctx context.Context, endpoint string, v any) error {
	var lastErr error
	backoff := 300 * time.Millisecond

	for attempt := 0; attempt < 3; attempt++ {
		c.throttleMu.Lock()
		since := time.Since(c.lastRequest)
		if since < c.minInterval {
			time.Sleep(c.minInterval - since)
		}
		c.lastRequest = time.Now()
		c.throttleMu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			log.Printf("[moviedb] http error (attempt %d/3): %v", attempt+1, err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			log.Printf("[moviedb] rate limited or server error (attempt %d/3): status %d", attempt+1, resp.StatusCode)
			lastErr = fmt.Errorf("moviedb request failed: %s", resp.Status)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("moviedb request failed: %s", resp.Status)
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return err
		}
		return nil
	}

	return lastErr
}

type searchPersonResponse struct {
	Results []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		ProfilePath string `json:"profile_path"`
		KnownFor    []struct {
			Title string `json:"title"`
			Name  string `json:"name"`
		} `json:"known_for"`
	} `json:"results"`
}

// SearchPerson resolves a name (e.g. an actor tag from a metadata
// record) to a person on the metadata service.
func (c *Client) SearchPerson(ctx context.Context, name string) (*Person, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/search/person?api_key=%s&language=%s&query=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(c.language), url.QueryEscape(name))

	var resp searchPersonResponse
	if err := c.doGET(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no person match for %q", name)
	}

	top := resp.Results[0]
	person := &Person{ID: top.ID, Name: top.Name}
	if top.ProfilePath != "" {
		person.ProfileURL = fmt.Sprintf("%s/%s%s", tmdbImageBaseURL, tmdbProfileSize, top.ProfilePath)
	}
	if len(top.KnownFor) > 0 {
		if t := top.KnownFor[0].Title; t != "" {
			person.KnownFor = t
		} else {
			person.KnownFor = top.KnownFor[0].Name
		}
	}
	return person, nil
}

type personCreditsResponse struct {
	Cast []struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		Character    string `json:"character"`
		MediaType    string `json:"media_type"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"cast"`
}

// PersonCredits returns the acting filmography for a person id.
func (c *Client) PersonCredits(ctx context.Context, personID int64) ([]PersonCredit, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/person/%d/combined_credits?api_key=%s&language=%s",
		c.baseURL, personID, url.QueryEscape(c.apiKey), url.QueryEscape(c.language))

	var resp personCreditsResponse
	if err := c.doGET(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	credits := make([]PersonCredit, 0, len(resp.Cast))
	for _, entry := range resp.Cast {
		title := entry.Title
		if title == "" {
			title = entry.Name
		}
		date := entry.ReleaseDate
		if date == "" {
			date = entry.FirstAirDate
		}
		year := 0
		if len(date) >= 4 {
			fmt.Sscanf(date[:4], "%d", &year)
		}
		credits = append(credits, PersonCredit{
			ID:        entry.ID,
			Title:     title,
			Year:      year,
			Character: entry.Character,
			MediaType: entry.MediaType,
		})
	}
	return credits, nil
}
