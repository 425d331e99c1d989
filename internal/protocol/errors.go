package protocol

import "errors"

var (
	ErrMalformed        = errors.New("malformed signaling message")
	ErrUnknownType      = errors.New("unknown signaling message type")
	ErrMissingSDP       = errors.New("payload carries no sdp")
	ErrMissingCandidate = errors.New("payload carries no usable candidate")
)
