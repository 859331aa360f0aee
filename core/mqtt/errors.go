package mqtt

import "errors"

var (
	// ErrNotConnected is returned when publishing without a broker connection.
	ErrNotConnected = errors.New("mqtt client not connected")
	// ErrPublishTimeout is returned when the broker does not confirm a publish in time.
	ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")
)
