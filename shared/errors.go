package shared

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// SendError writes {"error": message} with the given status code.
func SendError(w http.ResponseWriter, message string, status int) {
	SendJSON(w, status, errorResponse{Error: message})
}

func SendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
