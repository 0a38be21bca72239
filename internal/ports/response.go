package ports

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, cause string) {
	data, err := json.Marshal(errorResponse{Success: false, Cause: cause})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, []byte(`{"success":false,"cause":"internal server error"}`))
		return
	}
	writeJSON(w, statusCode, data)
}
