package plexauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"streamwatch/models"
	"streamwatch/services/plexserver"
)

const (
	plexTVBaseURL = "https://plex.tv/api/v2"
	plexAuthURL   = "https://app.plex.tv/auth"

	// Poll budget: 1s interval, 300 attempts, a 5-minute ceiling.
	pollInterval = time.Second
	pollAttempts = 300
)

// ErrAuthTimeout means the user never authorized the pairing code within
// the poll budget.
var ErrAuthTimeout = errors.New("authorization not granted before timeout")

// Client handles the PIN-based OAuth handshake against plex.tv.
type Client struct {
	httpClient *http.Client
	clientID   string

	baseURL  string
	interval time.Duration
	attempts int
}

// PIN is a one-time pairing code issued by the identity service.
type PIN struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	AuthToken string `json:"authToken,omitempty"`
}

// AccountInfo is the identity record behind an issued token.
type AccountInfo struct {
	ID       int    `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// NewClient creates an identity-service client. The client identifier
// must be stable across restarts; the authorization page binds the
// pairing code to it.
func NewClient(clientID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		clientID:   clientID,
		baseURL:    plexTVBaseURL,
		interval:   pollInterval,
		attempts:   pollAttempts,
	}
}

// NewClientWithBaseURL is for tests pointing at a local identity stub.
func NewClientWithBaseURL(clientID, baseURL string, interval time.Duration, attempts int) *Client {
	c := NewClient(clientID)
	c.baseURL = baseURL
	c.interval = interval
	c.attempts = attempts
	return c
}

// setHeaders adds the headers every identity-service call carries.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", "streamwatch")
	req.Header.Set("Accept", "application/json")
}

// CreatePIN requests a one-time pairing code.
func (c *Client) CreatePIN(ctx context.Context) (*PIN, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pins?strong=true", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &plexserver.NetworkError{Op: "create pin", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, &plexserver.ServiceError{Status: resp.StatusCode}
	}

	var pin PIN
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return nil, fmt.Errorf("decode pin response: %w", err)
	}
	return &pin, nil
}

// CheckPIN polls the status of a pairing code. AuthToken is empty until
// the user authorizes.
func (c *Client) CheckPIN(ctx context.Context, pinID int) (*PIN, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/pins/%d", c.baseURL, pinID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &plexserver.NetworkError{Op: "check pin", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &plexserver.ServiceError{Status: resp.StatusCode}
	}

	var pin PIN
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return nil, fmt.Errorf("decode pin response: %w", err)
	}
	return &pin, nil
}

// AuthURL returns the external authorization page for a pairing code.
func (c *Client) AuthURL(pinCode string) string {
	params := url.Values{}
	params.Set("clientID", c.clientID)
	params.Set("code", pinCode)
	params.Set("context[device][product]", "streamwatch")
	return fmt.Sprintf("%s#?%s", plexAuthURL, params.Encode())
}

// GetUser retrieves the account identity behind a token. Callers treat
// failure as non-fatal: a fresh token is never invalidated because this
// lookup failed.
func (c *Client) GetUser(ctx context.Context, token string) (*AccountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("X-Plex-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &plexserver.NetworkError{Op: "fetch account info", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &plexserver.ServiceError{Status: resp.StatusCode}
	}

	var info AccountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}
	return &info, nil
}

// Login runs the whole handshake: create a pairing code, surface the
// authorization URL through onAuthURL, poll until the user authorizes,
// then populate the credential's identity fields best-effort.
//
// Cancelling ctx stops polling and returns ctx.Err(); exhausting the
// poll budget returns ErrAuthTimeout.
func (c *Client) Login(ctx context.Context, onAuthURL func(authURL string)) (models.Credential, error) {
	pin, err := c.CreatePIN(ctx)
	if err != nil {
		return models.Credential{}, err
	}
	if onAuthURL != nil {
		onAuthURL(c.AuthURL(pin.Code))
	}

	token, err := c.pollForToken(ctx, pin.ID)
	if err != nil {
		return models.Credential{}, err
	}

	cred := models.Credential{Token: token}
	info, err := c.GetUser(ctx, token)
	if err != nil {
		// Ownership comparison degrades without identity fields, but the
		// token stays valid.
		log.Printf("[plexauth] account info fetch failed: %v", err)
		return cred, nil
	}
	cred.AccountID = info.ID
	cred.UUID = info.UUID
	cred.Email = info.Email
	cred.Username = info.Username
	return cred, nil
}

// pollForToken polls the pairing code on a fixed interval. Poll failures
// are logged and retried; only exhausting every attempt is a timeout.
// A token ends the loop immediately.
func (c *Client) pollForToken(ctx context.Context, pinID int) (string, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		pin, err := c.CheckPIN(ctx, pinID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("[plexauth] pin poll %d/%d failed: %v", attempt+1, c.attempts, err)
			continue
		}
		if pin.AuthToken != "" {
			return pin.AuthToken, nil
		}
	}
	return "", ErrAuthTimeout
}
