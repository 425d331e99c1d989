package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/peercall/internal/call"
	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

// terminalUI prints coordinator notifications. It has no video surface; the
// renderers only report what they would show.
type terminalUI struct {
	mu      sync.Mutex
	clients []protocol.Client
	remote  *remoteRenderer
}

func newTerminalUI() *terminalUI {
	return &terminalUI{}
}

// ---------------------------------------------------------------------------
// Renderers
// ---------------------------------------------------------------------------

func (u *terminalUI) OnStartLocalRenderer(track session.LocalTrack) {
	util.LogInfo("local preview started (%s track %s)", track.Kind(), track.ID())
}

func (u *terminalUI) OnStopLocalRenderer() {
	util.LogInfo("local preview stopped")
}

func (u *terminalUI) OnStartRemoteRenderer(track session.RemoteTrack) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.remote != nil {
		u.remote.stop()
	}
	u.remote = startRemoteRenderer(track)
}

func (u *terminalUI) OnStopRemoteRenderer() {
	u.mu.Lock()
	r := u.remote
	u.remote = nil
	u.mu.Unlock()

	if r != nil {
		r.stop()
	}
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// OnLog is a no-op: the coordinator has already written the line to the
// process log this UI shares.
func (u *terminalUI) OnLog(string, util.Level) {}

func (u *terminalUI) OnShowError(title, message string) {
	pterm.Error.Println(fmt.Sprintf("%s: %s", title, message))
}

func (u *terminalUI) OnShowInfo(title, message string) {
	pterm.Info.Println(fmt.Sprintf("%s: %s", title, message))
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

func (u *terminalUI) OnSignalConnected(clientID string) {
	util.LogSuccess("connected to signaling server as %s", clientID)
}

func (u *terminalUI) OnSignalDisconnected() {
	util.LogWarning("disconnected from signaling server")
}

func (u *terminalUI) OnSignalError(err error) {
	util.LogError("signaling: %v", err)
}

func (u *terminalUI) OnClientListUpdate(clients []protocol.Client) {
	u.mu.Lock()
	u.clients = append([]protocol.Client(nil), clients...)
	u.mu.Unlock()

	util.LogDebug("%d client(s) online", len(clients))
}

// Clients returns the last list received from the relay.
func (u *terminalUI) Clients() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	ids := make([]string, 0, len(u.clients))
	for _, c := range u.clients {
		ids = append(ids, c.ID)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (u *terminalUI) OnCallStateChanged(state call.State, peer string) {
	if peer == "" {
		util.LogInfo("call state: %s", state)
		return
	}
	util.LogInfo("call state: %s (%s)", state, peer)
}

func (u *terminalUI) OnIncomingCall(from string) {
	pterm.Println()
	pterm.DefaultBox.WithTitle("Incoming call").Println(
		strings.Join([]string{
			fmt.Sprintf("%s is calling you.", from),
			"Type 'accept' to answer or 'reject [reason]' to decline.",
		}, "\n"))
}
