package coordinator

import "errors"

var (
	ErrNotInitialized = errors.New("coordinator is not running")
	ErrAlreadyRunning = errors.New("coordinator is already running")
)
