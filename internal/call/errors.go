package call

import "errors"

var (
	ErrNotConnected = errors.New("signaling channel is not connected")
	ErrCallActive   = errors.New("a call is already active")
	ErrInvalidState = errors.New("operation not valid in the current call state")
	ErrEmptyPeer    = errors.New("peer id is empty")
	ErrPeerMismatch = errors.New("message names a peer other than the current one")
)
