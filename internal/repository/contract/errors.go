package contract

import "errors"

// ErrSessionNotFound is returned by mutating calls that target a session id
// with no stored row. Lookups return nil, nil instead.
var ErrSessionNotFound = errors.New("session not found")
