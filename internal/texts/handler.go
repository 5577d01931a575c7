package texts

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes registers the corpus retrieval endpoint.
func (c *Corpus) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/text/{id}", c.handleGet).Methods(http.MethodGet)
}

// handleGet serves one text body by id, as a JSON string. Unknown ids get a
// 404 so the client can tell a bad id from a server failure.
func (c *Corpus) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, "Not found")
		return
	}

	text, ok := c.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, text)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write text response")
	}
}
