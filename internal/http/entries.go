package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"voice-journal/internal/service/journal"
)

type updateEntryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// saveEntry turns the current transcript into an entry.
func (api *API) saveEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := api.Saver.Save(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (api *API) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := api.Journal.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	WriteJSON(w, http.StatusOK, entries)
}

func (api *API) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := api.Journal.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

func (api *API) updateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	entry, err := api.Journal.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

func (api *API) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := api.Journal.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
