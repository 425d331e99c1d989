package call

// Observer receives the outcome of every transition. All methods are invoked
// on the coordination goroutine, synchronously from the Machine method that
// caused them.
type Observer interface {
	OnCallStateChanged(state State, peer string)
	OnIncomingCall(from string)
	OnCallAccepted(peer string)
	OnCallRejected(peer, reason string)
	OnCallCancelled(peer, reason string)
	OnCallEnded(peer, reason string)
	OnCallTimeout(peer string)

	// OnNeedSession asks for a media session towards peer.
	OnNeedSession(peer string, isCaller bool)
	// OnNeedCloseSession asks for the media session to be torn down.
	OnNeedCloseSession()
}
