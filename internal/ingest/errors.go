package ingest

import "errors"

// ErrInvalidChannel is returned when a hook names a channel outside the
// hardware's supported range.
var ErrInvalidChannel = errors.New("ingest: invalid channel")
