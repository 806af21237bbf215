// Package response writes the JSON envelope shared by every HTTP endpoint.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/dtroode/authkeeper-server/internal/apierror"
)

// Envelope is the body of every response.
type Envelope struct {
	Error         bool   `json:"error"`
	URL           string `json:"url"`
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Message       string `json:"message"`
	Data          any    `json:"data,omitempty"`
}

// Success writes a 200 envelope.
func Success(w http.ResponseWriter, r *http.Request, message string, data any) {
	Write(w, r, http.StatusOK, message, data)
}

// Error writes err as an error envelope. Errors that are not API errors
// become 500 without leaking their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.From(err)

	var data any
	if len(apiErr.Details) > 0 {
		data = apiErr.Details
	}
	Write(w, r, apiErr.HTTPStatus(), apiErr.Message, data)
}

// Write writes an envelope with the given status.
func Write(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(Envelope{
		Error:         status >= http.StatusBadRequest,
		URL:           requestURL(r),
		StatusCode:    status,
		StatusMessage: http.StatusText(status),
		Message:       message,
		Data:          data,
	})
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
