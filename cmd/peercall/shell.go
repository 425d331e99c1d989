package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/peercall/internal/call"
	"github.com/1ureka/peercall/internal/coordinator"
	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/util"
)

var errQuit = errors.New("quit")

// shell reads commands from the terminal and turns them into coordinator
// intents.
type shell struct {
	core *coordinator.Coordinator
	ui   *terminalUI
	url  string
	id   string
}

// run executes commands until quit, end of input or ctx is done.
func (s *shell) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := s.exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return
				}
				util.LogError("%v", err)
			}
		}
	}
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		printHelp()

	case "list", "ls":
		if err := s.core.RequestClientList(); err != nil {
			return fmt.Errorf("failed to request client list: %w", err)
		}
		s.printClients()

	case "call":
		if len(args) != 1 {
			return errors.New("usage: call <id>")
		}
		if err := s.core.StartCall(args[0]); err != nil {
			return fmt.Errorf("cannot call %s: %w", args[0], err)
		}

	case "accept":
		if err := s.core.AcceptCall(); err != nil {
			return fmt.Errorf("cannot accept: %w", err)
		}

	case "reject":
		if err := s.core.RejectCall(strings.Join(args, " ")); err != nil {
			return fmt.Errorf("cannot reject: %w", err)
		}

	case "hangup", "end":
		if err := s.core.EndCall(); err != nil {
			return fmt.Errorf("cannot hang up: %w", err)
		}

	case "stats":
		snap := s.core.GetLatestRtcStats()
		if !snap.Valid {
			util.LogInfo("no statistics yet (ICE %s)", snap.ICEState)
			return nil
		}
		return util.RenderStats(snap)

	case "state":
		s.printState()

	case "connect":
		id := s.core.GetClientID()
		if id == "" {
			id = s.id
		}
		return s.core.ConnectToSignalServer(ctx, s.url, id)

	case "disconnect":
		s.core.DisconnectFromSignalServer()

	case "quit", "exit":
		if s.core.IsInCall() {
			_ = s.core.EndCall()
		}
		return errQuit

	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	return nil
}

func (s *shell) printClients() {
	self := s.core.GetClientID()

	var items []pterm.BulletListItem
	for _, id := range s.ui.Clients() {
		text := id
		if id == self {
			text += " (you)"
		}
		items = append(items, pterm.BulletListItem{Level: 0, Text: text})
	}
	if len(items) == 0 {
		util.LogInfo("no clients known yet")
		return
	}
	_ = pterm.DefaultBulletList.WithItems(items).Render()
}

func (s *shell) printState() {
	state := s.core.GetCallState()
	data := pterm.TableData{
		{"Signaling", connectedText(s.core.IsConnectedToSignalServer())},
		{"Client id", valueOr(s.core.GetClientID(), rtcstats.Placeholder)},
		{"Call", state.String()},
	}
	if state != call.Idle {
		data = append(data, []string{"Peer", s.core.GetCurrentPeerID()})
	}
	_ = pterm.DefaultTable.WithBoxed().WithData(data).Render()
}

func printHelp() {
	pterm.DefaultSection.Println("Commands")
	_ = pterm.DefaultTable.WithData(pterm.TableData{
		{"list", "show clients online"},
		{"call <id>", "ring a client"},
		{"accept", "answer the incoming call"},
		{"reject [reason]", "decline the incoming call"},
		{"hangup", "end or cancel the current call"},
		{"stats", "show transport statistics"},
		{"state", "show connection and call state"},
		{"connect / disconnect", "manage the signaling connection"},
		{"quit", "leave"},
	}).Render()
}

func connectedText(ok bool) string {
	if ok {
		return "connected"
	}
	return "disconnected"
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
