package plexserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"streamwatch/models"
)

const dataTimeout = 10 * time.Second

// protocolOrder is the fixed, user-predictable fallback order. Self-hosted
// servers are inconsistently reachable: HTTPS breaks on missing relay
// setup or self-signed chains, HTTP breaks on ISP/network blocking, so
// both are tried for every logical resource.
var protocolOrder = []string{"https", "http"}

// Client talks to one Plex Media Server at a host:port supplied by the
// user. All endpoints are token-authenticated via query parameter and
// fetched with the HTTPS-then-HTTP fallback policy.
type Client struct {
	host       string
	port       int
	token      string
	httpClient *http.Client
}

// NewClient creates a media-server client for the given address.
func NewClient(host string, port int, token string) *Client {
	return &Client{
		host:       host,
		port:       port,
		token:      token,
		httpClient: newHTTPClient(dataTimeout),
	}
}

// Capabilities is the server's self-description from its root endpoint.
type Capabilities struct {
	FriendlyName      string `json:"friendlyName"`
	MachineIdentifier string `json:"machineIdentifier"`
	Version           string `json:"version"`
	Platform          string `json:"platform"`
	MyPlexUsername    string `json:"myPlexUsername,omitempty"`
	TranscoderVideo   bool   `json:"transcoderVideo"`
	TranscoderAudio   bool   `json:"transcoderAudio"`
}

// Activity is a long-running server-side task (library scan, refresh).
type Activity struct {
	UUID     string  `json:"uuid"`
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	Progress float64 `json:"progress"`
}

// FetchSessions returns the server's current playback sessions in
// document order.
func (c *Client) FetchSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := c.fetch(ctx, "/status/sessions", nil, func(body []byte) error {
		decoded, err := decodeSessions(body)
		if err != nil {
			return err
		}
		sessions = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// FetchCapabilities returns the server's self-description.
func (c *Client) FetchCapabilities(ctx context.Context) (*Capabilities, error) {
	var caps *Capabilities
	err := c.fetch(ctx, "/", nil, func(body []byte) error {
		decoded, err := decodeCapabilities(body)
		if err != nil {
			return err
		}
		caps = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return caps, nil
}

// FetchActivities returns the server's running background activities.
func (c *Client) FetchActivities(ctx context.Context) ([]Activity, error) {
	var activities []Activity
	err := c.fetch(ctx, "/activities", nil, func(body []byte) error {
		decoded, err := decodeActivities(body)
		if err != nil {
			return err
		}
		activities = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// FetchMetadata returns the rich metadata record for one content item.
func (c *Client) FetchMetadata(ctx context.Context, ratingKey string) (*models.MovieMetadata, error) {
	query := url.Values{}
	query.Set("includeRelated", "0")
	var meta *models.MovieMetadata
	err := c.fetch(ctx, "/library/metadata/"+url.PathEscape(ratingKey), query, func(body []byte) error {
		decoded, err := decodeMetadata(body)
		if err != nil {
			return err
		}
		meta = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// fetch applies the protocol-fallback policy to one logical resource:
// try each protocol in order, return on the first successful decode,
// stop immediately on a rejected token, otherwise record the failure
// and move on. Exhausting all protocols surfaces the last failure.
func (c *Client) fetch(ctx context.Context, path string, query url.Values, decode func([]byte) error) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}

	var lastErr error
	for _, proto := range protocolOrder {
		body, err := c.get(ctx, proto, path, query)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || ctx.Err() != nil {
				return err
			}
			log.Printf("[plexserver] %s fetch of %s failed: %v", proto, path, err)
			lastErr = err
			continue
		}
		if err := decode(body); err != nil {
			log.Printf("[plexserver] %s payload for %s malformed: %v", proto, path, err)
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// get executes a single request against one protocol.
func (c *Client) get(ctx context.Context, proto, path string, query url.Values) ([]byte, error) {
	q := url.Values{}
	for key, vals := range query {
		q[key] = vals
	}
	q.Set("X-Plex-Token", c.token)

	u := url.URL{
		Scheme:   proto,
		Host:     fmt.Sprintf("%s:%d", c.host, c.port),
		Path:     path,
		RawQuery: q.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Live state only; a cached sessions payload is worse than a failure.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: proto + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidToken
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &ServiceError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read " + path, Err: err}
	}
	return body, nil
}
