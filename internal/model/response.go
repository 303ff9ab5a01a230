package model

import "time"

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// SessionResponse is returned by the setup and login endpoints. The token is
// only ever sent in this response.
type SessionResponse struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// FirstLoginResponse reports whether the admin credential still needs to be set up.
type FirstLoginResponse struct {
	IsFirstLogin bool `json:"isFirstLogin"`
}

// VerifyResponse wraps the principal behind a valid session.
type VerifyResponse struct {
	User *Principal `json:"user"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
