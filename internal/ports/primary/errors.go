package primary

import "errors"

// ErrInvalidRequest is wrapped by services when a request fails validation.
var ErrInvalidRequest = errors.New("invalid request")
