package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/classroom-go/internal/submission"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// The status line is already out; an encode failure can only be a
	// broken connection.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status of its kind. Upstream messages are
// passed through unchanged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := submission.KindOf(err)

	s.logger.Warn("request failed",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("kind", kind.String()),
		slog.String("error", err.Error()),
	)

	writeJSON(w, kind.HTTPStatus(), errorBody{Error: err.Error()})
}
