package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"streamwatch/models"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Plex     PlexSettings     `json:"plex"`
	Metadata MetadataSettings `json:"metadata"`
	Refresh  RefreshSettings  `json:"refresh"`
	API      APISettings      `json:"api"`
	Log      LogConfig        `json:"log"`
}

// ServerSettings identifies the media server the companion talks to.
// The port is fixed by the server product; 32400 unless the operator
// moved it.
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// PlexSettings holds the issued credential, the account identity used
// for session-ownership comparison, and the stable client identifier
// sent on every identity-service call.
type PlexSettings struct {
	AuthToken string `json:"authToken,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	UserID    int    `json:"userId,omitempty"`
	UserUUID  string `json:"userUuid,omitempty"`
	ClientID  string `json:"clientId"`
}

// Credential converts the persisted fields into the in-memory credential.
func (p PlexSettings) Credential() models.Credential {
	return models.Credential{
		Token:     p.AuthToken,
		AccountID: p.UserID,
		UUID:      p.UserUUID,
		Email:     p.Email,
		Username:  p.Username,
	}
}

// SetCredential copies an issued credential back into the persisted fields.
func (p *PlexSettings) SetCredential(c models.Credential) {
	p.AuthToken = c.Token
	p.UserID = c.AccountID
	p.UserUUID = c.UUID
	p.Email = c.Email
	p.Username = c.Username
}

// ClearCredential drops the token and identity fields. Only the explicit
// logout path calls this; transient network failures never do.
func (p *PlexSettings) ClearCredential() {
	p.AuthToken = ""
	p.Username = ""
	p.Email = ""
	p.UserID = 0
	p.UserUUID = ""
}

// MetadataSettings configures the external ratings/person lookup service.
type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
}

// RefreshSettings controls the background session refresh cadence.
type RefreshSettings struct {
	IntervalSeconds int `json:"intervalSeconds"`
}

// APISettings configures the local HTTP surface consumed by the UI.
type APISettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "", Port: 32400},
		Plex:     PlexSettings{},
		Metadata: MetadataSettings{TMDBAPIKey: "", Language: "en"},
		Refresh:  RefreshSettings{IntervalSeconds: 15},
		API:      APISettings{Host: "127.0.0.1", Port: 7878},
		Log: LogConfig{
			File:       "",
			Level:      "info",
			MaxSize:    10,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing. A client
// identifier is generated and persisted on first load so the identity
// service sees a stable device across restarts.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		defaults.Plex.ClientID = newClientID()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Old installs predate the persisted client identifier.
	if strings.TrimSpace(s.Plex.ClientID) == "" {
		s.Plex.ClientID = newClientID()
		if err := m.Save(s); err != nil {
			return Settings{}, err
		}
	}
	if s.Server.Port == 0 {
		s.Server.Port = 32400
	}
	if s.Refresh.IntervalSeconds <= 0 {
		s.Refresh.IntervalSeconds = 15
	}

	return s, nil
}

// Save writes settings to disk as pretty-printed JSON.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func newClientID() string {
	return "streamwatch-" + uuid.NewString()
}
