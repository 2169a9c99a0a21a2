package stats

import "errors"

// ErrUnknownShape is returned when a record holds a value that is neither a
// number nor a nested record
var ErrUnknownShape = errors.New("unknown value shape")
