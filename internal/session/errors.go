package session

import "errors"

var (
	ErrSessionActive = errors.New("a session is already active")
	ErrNoSession     = errors.New("no active session")

	ErrSessionCreate  = errors.New("session creation failed")
	ErrTrackAdd       = errors.New("local track could not be added")
	ErrSDPParse       = errors.New("remote session description could not be parsed")
	ErrCandidateParse = errors.New("ICE candidate could not be parsed")

	ErrCreateOffer  = errors.New("offer creation failed")
	ErrCreateAnswer = errors.New("answer creation failed")
	ErrSetLocal     = errors.New("local description could not be applied")
	ErrSetRemote    = errors.New("remote description could not be applied")
)
