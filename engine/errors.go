package engine

import "github.com/pkg/errors"

// ErrClosed is returned by any operation issued against a closed engine
// (spec §7's IllegalState kind, engine-scoped).
var ErrClosed = errors.New("engine: closed")

// ErrAlreadyOpen is returned when Open fails to acquire the data
// directory's exclusivity lock because another process already holds it.
var ErrAlreadyOpen = errors.New("engine: data directory already owned by another process")
