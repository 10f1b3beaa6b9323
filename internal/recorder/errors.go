package recorder

import "errors"

var (
	// ErrDiskFull is returned when free space on the recording volume is
	// below the configured minimum and a new segment cannot be started.
	ErrDiskFull = errors.New("recorder: insufficient free disk space")

	// ErrInvalidChannel names a channel outside the hardware's supported range.
	ErrInvalidChannel = errors.New("recorder: invalid channel")

	// ErrInvalidSchedule is returned by ParseSchedule on malformed input.
	ErrInvalidSchedule = errors.New("recorder: invalid schedule")
)
