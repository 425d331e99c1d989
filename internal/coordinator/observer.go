package coordinator

import (
	"github.com/1ureka/peercall/internal/call"
	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

// UIObserver is implemented by the presentation layer. Notifications are
// delivered in order on a dedicated goroutine, so implementations may call
// back into the Coordinator.
type UIObserver interface {
	OnStartLocalRenderer(track session.LocalTrack)
	OnStopLocalRenderer()
	OnStartRemoteRenderer(track session.RemoteTrack)
	OnStopRemoteRenderer()

	OnLog(text string, level util.Level)
	OnShowError(title, message string)
	OnShowInfo(title, message string)

	OnSignalConnected(clientID string)
	OnSignalDisconnected()
	OnSignalError(err error)
	OnClientListUpdate(clients []protocol.Client)

	OnCallStateChanged(state call.State, peer string)
	OnIncomingCall(from string)
}
