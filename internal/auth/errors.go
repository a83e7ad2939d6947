package auth

import (
	"errors"
	"net/http"
)

const (
	ErrorInvalidRequest       = "invalid_request"
	ErrorInvalidGrant         = "invalid_grant"
	ErrorInvalidTicket        = "invalid_ticket"
	ErrorInvalidCode          = "invalid_code"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
	ErrorAccessDenied         = "access_denied"
	ErrorServerError          = "server_error"
)

var (
	ErrMissingParameter     = errors.New("missing required parameter")
	ErrUnsupportedResponse  = errors.New("unsupported response_type")
	ErrUnsupportedChallenge = errors.New("unsupported code_challenge_method")
	ErrClientUnavailable    = errors.New("client_id could not be fetched")
	ErrRedirectNotAllowed   = errors.New("redirect_uri is not registered for client_id")
	ErrClientMismatch       = errors.New("client_id does not match the code")
	ErrRedirectMismatch     = errors.New("redirect_uri does not match the code")
	ErrCodeExpired          = errors.New("code has expired")
	ErrCodeReused           = errors.New("code has already been redeemed")
	ErrVerifierMismatch     = errors.New("code_verifier does not match the challenge")
	ErrVerifierMissing      = errors.New("code_verifier is required")
	ErrTokenRevoked         = errors.New("token has been revoked")
	ErrTokenInactive        = errors.New("token is no longer active")
	ErrResourceNotAllowed   = errors.New("token does not grant access to resource")
	ErrParameterTooLong     = errors.New("parameter too long")
	ErrTokenTooLong         = errors.New("access token would exceed the storable length")
	ErrNotLoggedIn          = errors.New("not logged in")
)

// Error is an OAuth error response. Err carries the underlying cause and is
// exposed as error_description when Description is empty.
type Error struct {
	Code        string
	Description string
	Status      int
	Err         error
}

func (e *Error) Error() string {
	if desc := e.ErrorDescription(); desc != "" {
		return e.Code + ": " + desc
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) ErrorDescription() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: e.Code, ErrorDescription: e.ErrorDescription()}
}

func newError(code string, status int, err error) *Error {
	return &Error{Code: code, Status: status, Err: err}
}

func invalidRequest(err error) *Error {
	return newError(ErrorInvalidRequest, http.StatusBadRequest, err)
}

func invalidGrant(err error) *Error {
	return newError(ErrorInvalidGrant, http.StatusBadRequest, err)
}

func serverError(err error) *Error {
	return newError(ErrorServerError, http.StatusInternalServerError, err)
}

// AsError returns err as an OAuth error, classifying unknown errors as
// server errors.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return serverError(err)
}

// IsGrantFailure reports whether err rejects presented credentials, as
// opposed to a malformed request or an internal failure.
func IsGrantFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrorInvalidGrant, ErrorInvalidTicket, ErrorInvalidCode:
		return true
	}
	return false
}
