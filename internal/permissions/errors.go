package permissions

import "errors"

var (
	ErrMicrophoneDenied  = errors.New("microphone permission denied")
	ErrMicrophonePending = errors.New("microphone permission requested, restart after granting access")
)
