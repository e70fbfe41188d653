package marketplace

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the status/statusText/data triple returned by every marketplace call
type Response struct {
	Status     int             `json:"status"`
	StatusText string          `json:"statusText"`
	Data       json.RawMessage `json:"data"`
}

// APIError is returned when the marketplace answers with a non-2xx status. It
// carries the upstream response unchanged so callers can mirror it.
type APIError struct {
	Status     int
	StatusText string
	Data       json.RawMessage
	Endpoint   string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace %s returned %d %s", e.Endpoint, e.Status, e.StatusText)
}

// Response returns the upstream triple of the rejected call
func (e *APIError) Response() *Response {
	return &Response{Status: e.Status, StatusText: e.StatusText, Data: e.Data}
}

// TokenResponse is the body of /v1/auth/token
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TransitionRequest is the body of /v1/api/transactions/transition
type TransitionRequest struct {
	ID         string                 `json:"id"`
	Transition string                 `json:"transition"`
	Params     map[string]interface{} `json:"params"`
}

// UpdateProfileRequest is the body of /v1/integration_api/users/update_profile
type UpdateProfileRequest struct {
	ID       string      `json:"id"`
	Metadata interface{} `json:"metadata"`
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
