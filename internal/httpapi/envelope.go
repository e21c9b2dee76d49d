package httpapi

import (
	"encoding/json"
	"net/http"
)

// envelope is the wire shape of every Query API response.
type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, envelope{Success: true, StatusCode: status, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message, errText string) {
	writeEnvelope(w, envelope{Success: false, StatusCode: status, Message: message, Error: errText})
}

func writeEnvelope(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	_ = json.NewEncoder(w).Encode(env)
}
