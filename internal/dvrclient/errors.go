package dvrclient

import "errors"

// Sentinel errors identifying the failure kinds a caller may need to
// distinguish, per operation.
var (
	ErrDialFailed          = errors.New("dvrclient: dial failed")
	ErrAuthFailed          = errors.New("dvrclient: authentication failed")
	ErrTimeout             = errors.New("dvrclient: timed out waiting for reply")
	ErrProtocolError       = errors.New("dvrclient: protocol error")
	ErrStreamCreateFailed  = errors.New("dvrclient: stream create failed")
	ErrStreamStartFailed   = errors.New("dvrclient: stream start failed")
	ErrMediaReadError      = errors.New("dvrclient: media read error")
	ErrHeartbeatTimeout    = errors.New("dvrclient: heartbeat timeout")
	ErrNotLoggedIn         = errors.New("dvrclient: not logged in")
	ErrInvalidChannel      = errors.New("dvrclient: invalid channel")
)
