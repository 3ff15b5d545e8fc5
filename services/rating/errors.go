package rating

import "errors"

var (
	ErrNoPractitioners = errors.New("appointment has no practitioners")
	ErrInvalidRating   = errors.New("total rating must be positive")
)
