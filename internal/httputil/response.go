package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

type ErrorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httputil: failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// RedirectWithError sends a 303 to path with message attached as the "error" query parameter.
func RedirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	target := path
	if message != "" {
		u, err := url.Parse(path)
		if err == nil {
			q := u.Query()
			q.Set("error", message)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
