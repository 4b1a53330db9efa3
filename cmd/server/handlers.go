// cmd/server/handlers.go
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/steltix/newsgrab/internal/detect"
	"github.com/steltix/newsgrab/pkg/api"
	"github.com/steltix/newsgrab/pkg/types"
)

// extractRequest is the POST /api/v1/extract payload. HTML, when present,
// makes the extraction fully offline.
type extractRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

// extractResponse wraps the result with the abort classification when the
// cascade did not finish cleanly.
type extractResponse struct {
	Result *types.ArticleResult `json:"result"`
	Error  *extractError        `json:"error,omitempty"`
}

type extractError struct {
	Class      string `json:"class"`
	StatusCode int    `json:"status_code,omitempty"`
	Variant    string `json:"variant,omitempty"`
	RetryAfter string `json:"retry_after,omitempty"`
	Message    string `json:"message"`
}

func newRouter(client *api.Client) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/extract", handleExtract(client)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", client.Metrics().Handler()).Methods(http.MethodGet)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleExtract(client *api.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.URL == "" {
			http.Error(w, "url is required", http.StatusBadRequest)
			return
		}

		var result *types.ArticleResult
		var err error
		if req.HTML != "" {
			result, err = client.ExtractHTML(r.Context(), req.URL, req.HTML)
		} else {
			result, err = client.Extract(r.Context(), req.URL)
		}

		resp := extractResponse{Result: result}
		status := http.StatusOK
		if err != nil {
			resp.Error = classifyError(err)
			status = httpStatusFor(err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

func classifyError(err error) *extractError {
	var blockErr *detect.BlockError
	if errors.As(err, &blockErr) {
		e := &extractError{
			Class:      blockErr.Class.String(),
			StatusCode: blockErr.StatusCode,
			Variant:    string(blockErr.Variant),
			Message:    blockErr.Error(),
		}
		if blockErr.RetryAfter > 0 {
			e.RetryAfter = blockErr.RetryAfter.Round(time.Second).String()
		}
		return e
	}
	return &extractError{
		Class:   detect.ParseFailure.String(),
		Message: err.Error(),
	}
}

// httpStatusFor maps cascade aborts onto API statuses. The upstream site's
// failure is the service's upstream failure.
func httpStatusFor(err error) int {
	var blockErr *detect.BlockError
	if !errors.As(err, &blockErr) {
		return http.StatusInternalServerError
	}
	switch blockErr.Class {
	case detect.PermanentNotFound:
		return http.StatusNotFound
	case detect.RateLimited:
		return http.StatusTooManyRequests
	case detect.BotBlocked:
		return http.StatusBadGateway
	case detect.ServerError, detect.RedirectAnomaly, detect.UnexpectedStatus:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
