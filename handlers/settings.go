package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"streamwatch/config"
)

// SettingsHandler serves the persisted settings blob.
type SettingsHandler struct {
	Manager  *config.Manager
	DemoMode bool

	// Reload is called after a successful save so long-lived services
	// pick up the new server address or API keys.
	Reload func(config.Settings)
}

func NewSettingsHandler(m *config.Manager, demoMode bool) *SettingsHandler {
	return &SettingsHandler{Manager: m, DemoMode: demoMode}
}

// SettingsResponse wraps config.Settings with runtime information. The
// token is masked; the UI only needs to know whether one exists.
type SettingsResponse struct {
	config.Settings
	DemoMode      bool `json:"demoMode"`
	Authenticated bool `json:"authenticated"`
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := SettingsResponse{
		Settings:      s,
		DemoMode:      h.DemoMode,
		Authenticated: s.Plex.AuthToken != "",
	}
	resp.Plex.AuthToken = ""
	writeJSON(w, http.StatusOK, resp)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The credential and client identifier are owned by the auth flow;
	// a settings PUT can never overwrite or clear them.
	s.Plex = current.Plex

	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if h.Reload != nil {
		h.Reload(s)
		log.Printf("[settings] saved and reloaded services")
	}

	writeJSON(w, http.StatusOK, s)
}
