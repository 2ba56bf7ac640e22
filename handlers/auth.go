package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"streamwatch/config"
	"streamwatch/models"
	"streamwatch/services/demo"
	"streamwatch/services/plexauth"
	"streamwatch/services/sessions"
)

// SourceBuilder rebuilds the synchronizer's fetchers after a credential
// or server-address change. Wired in main.
type SourceBuilder func(settings config.Settings) (sessions.Fetcher, sessions.MetadataFetcher)

// AuthHandler exposes the authentication handshake over the local API.
type AuthHandler struct {
	Manager     *config.Manager
	Auth        *plexauth.Client
	Sync        *sessions.Synchronizer
	BuildSource SourceBuilder
}

func NewAuthHandler(m *config.Manager, auth *plexauth.Client, sync *sessions.Synchronizer, build SourceBuilder) *AuthHandler {
	return &AuthHandler{Manager: m, Auth: auth, Sync: sync, BuildSource: build}
}

// StartLogin requests a pairing code and returns it with the external
// authorization URL. The UI polls LoginStatus until authorized.
func (h *AuthHandler) StartLogin(w http.ResponseWriter, r *http.Request) {
	pin, err := h.Auth.CreatePIN(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pinId":   pin.ID,
		"code":    pin.Code,
		"authUrl": h.Auth.AuthURL(pin.Code),
	})
}

// LoginStatus polls a pairing code once. When the user has authorized,
// it completes the handshake: best-effort account-info fetch, credential
// persisted, synchronizer repointed.
func (h *AuthHandler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	pinID, err := strconv.Atoi(mux.Vars(r)["pinId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid pin id"))
		return
	}

	pin, err := h.Auth.CheckPIN(r.Context(), pinID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if pin.AuthToken == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authorized": false})
		return
	}

	cred := models.Credential{Token: pin.AuthToken}
	if info, err := h.Auth.GetUser(r.Context(), pin.AuthToken); err != nil {
		// Non-fatal: the token is already issued and stays valid.
		log.Printf("[auth] account info fetch failed: %v", err)
	} else {
		cred.AccountID = info.ID
		cred.UUID = info.UUID
		cred.Email = info.Email
		cred.Username = info.Username
	}

	if err := h.persistCredential(cred); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authorized": true,
		"username":   cred.Username,
	})
}

// DemoLogin validates the fixed demo identifier and switches the
// synchronizer to the fixture provider. Nothing touches the network and
// nothing is persisted.
func (h *AuthHandler) DemoLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !demo.Matches(body.Identifier) {
		writeError(w, http.StatusUnauthorized, errors.New("unknown demo identifier"))
		return
	}

	provider := demo.NewProvider()
	h.Sync.SetSource(provider, provider, demo.Credential())
	writeJSON(w, http.StatusOK, map[string]any{
		"authorized": true,
		"username":   demo.Credential().Username,
		"demo":       true,
	})
}

// Logout clears the persisted credential and resets the synchronizer.
// This is the only path that drops a token; transient failures never do.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	settings.Plex.ClearCredential()
	if err := h.Manager.Save(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.Sync.SetSource(nil, nil, models.Credential{})
	h.Sync.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// GetUser returns the identity behind the persisted credential, token
// excluded.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if settings.Plex.AuthToken == "" {
		writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": settings.Plex.Username,
		"email":    settings.Plex.Email,
		"userId":   settings.Plex.UserID,
		"uuid":     settings.Plex.UserUUID,
	})
}

func (h *AuthHandler) persistCredential(cred models.Credential) error {
	settings, err := h.Manager.Load()
	if err != nil {
		return err
	}
	settings.Plex.SetCredential(cred)
	if err := h.Manager.Save(settings); err != nil {
		return err
	}
	fetcher, metaFetcher := h.BuildSource(settings)
	h.Sync.SetSource(fetcher, metaFetcher, cred)
	return nil
}
