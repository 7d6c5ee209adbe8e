package automation

import "errors"

// Sentinel errors for the automation service layer.
var (
	ErrNotFound   = errors.New("automation not found")
	ErrValidation = errors.New("invalid automation")
)
