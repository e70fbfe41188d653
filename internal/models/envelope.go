package models

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body shared by every transaction surface:
// the upstream status, its status text and the upstream data, passed through.
type Envelope struct {
	Status     int             `json:"status"`
	StatusText string          `json:"statusText"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope builds an envelope, defaulting the status text from the code
func NewEnvelope(status int, statusText string, data json.RawMessage) Envelope {
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Envelope{Status: status, StatusText: statusText, Data: data}
}

// ErrorData is the data payload of locally generated error envelopes
type ErrorData struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewErrorEnvelope builds an envelope for an error raised by this service
func NewErrorEnvelope(status int, code, message string) Envelope {
	data, _ := json.Marshal(ErrorData{Error: code, Message: message})
	return NewEnvelope(status, "", data)
}
