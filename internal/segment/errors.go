package segment

import "errors"

// Sentinel errors for the segment service layer.
var (
	ErrNotFound   = errors.New("segment not found")
	ErrValidation = errors.New("invalid segment")
)
