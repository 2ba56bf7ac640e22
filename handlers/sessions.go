package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"streamwatch/services/moviedb"
	"streamwatch/services/plexserver"
	"streamwatch/services/sessions"
)

// SessionsHandler exposes the synchronizer over the local API.
type SessionsHandler struct {
	Sync    *sessions.Synchronizer
	MovieDB *moviedb.Client
}

func NewSessionsHandler(sync *sessions.Synchronizer, mdb *moviedb.Client) *SessionsHandler {
	return &SessionsHandler{Sync: sync, MovieDB: mdb}
}

// List returns the current state without fetching.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sync.State())
}

// Refresh runs a synchronization cycle and returns the resulting state.
// A refresh failure is part of the state (lastError), not an HTTP error:
// already-displayed data is never discarded because a refresh failed.
func (h *SessionsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Sync.Refresh(r.Context()); err != nil {
		if errors.Is(err, plexserver.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if errors.Is(err, plexserver.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.Sync.State())
}

// Select moves the selection to an index in the current snapshot.
func (h *SessionsHandler) Select(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Sync.Select(body.Index); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Sync.State())
}

// Metadata fetches and returns the rich record for a rating key.
func (h *SessionsHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	ratingKey := mux.Vars(r)["ratingKey"]
	meta, err := h.Sync.FetchMetadata(r.Context(), ratingKey)
	if err != nil {
		switch {
		case errors.Is(err, plexserver.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, plexserver.ErrInvalidToken),
			errors.Is(err, plexserver.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, err)
		default:
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// SetActor stores a pending actor selection for the detail view.
func (h *SessionsHandler) SetActor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("actor name required"))
		return
	}
	h.Sync.SetPendingActor(body.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResolveActor takes the pending actor selection, resolves it against
// the metadata service, and returns the person with their filmography.
// Taking clears the slot; it is scoped to one detail navigation.
func (h *SessionsHandler) ResolveActor(w http.ResponseWriter, r *http.Request) {
	name := h.Sync.TakePendingActor()
	if name == "" {
		writeError(w, http.StatusNotFound, errors.New("no pending actor selection"))
		return
	}

	person, err := h.MovieDB.SearchPerson(r.Context(), name)
	if err != nil {
		if errors.Is(err, moviedb.ErrNotConfigured) {
			// Degrade to the bare name; the detail view still renders.
			writeJSON(w, http.StatusOK, map[string]any{"name": name})
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}

	credits, err := h.MovieDB.PersonCredits(r.Context(), person.ID)
	if err != nil {
		credits = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"person":  person,
		"credits": credits,
	})
}
