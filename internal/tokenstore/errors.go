package tokenstore

import "errors"

var (
	ErrStorage        = errors.New("token storage failure")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTokenNotFound  = errors.New("token not found")
)
