package api

import (
	"encoding/json"
	"net/http"

	"github.com/good-yellow-bee/slate/internal/logging"
)

type errorResponse struct {
	Error *Error `json:"error"`
}

// JSONError writes err as a JSON error response.
func JSONError(w http.ResponseWriter, r *http.Request, err *Error) {
	logger := logging.From(r.Context())
	logger.Debugw("api error", "method", r.Method, "path", r.URL.Path, "code", err.Code)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Error: err}); encErr != nil {
		logger.Warnw("json encode error", "error", encErr)
	}
}
