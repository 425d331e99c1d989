package main

import (
	"sync"

	"github.com/pion/rtp"

	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

// packetSource is implemented by remote tracks that expose their RTP.
type packetSource interface {
	Packets() <-chan *rtp.Packet
}

// remoteRenderer consumes the remote video track and counts frames. Frame
// boundaries are taken from the RTP marker bit.
type remoteRenderer struct {
	id   string
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	frames  uint64
	packets uint64
}

func startRemoteRenderer(track session.RemoteTrack) *remoteRenderer {
	r := &remoteRenderer{id: track.ID(), quit: make(chan struct{})}
	util.LogInfo("remote video started (track %s)", r.id)

	src, ok := track.(packetSource)
	if !ok {
		return r
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(src.Packets())
	}()
	return r
}

func (r *remoteRenderer) drain(packets <-chan *rtp.Packet) {
	for {
		select {
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			r.mu.Lock()
			r.packets++
			if pkt.Marker {
				r.frames++
			}
			r.mu.Unlock()

		case <-r.quit:
			return
		}
	}
}

// stop ends the drain and reports what was received.
func (r *remoteRenderer) stop() {
	close(r.quit)
	r.wg.Wait()

	frames, packets := r.counts()
	util.LogInfo("remote video stopped (track %s): %d frame(s) in %d packet(s)", r.id, frames, packets)
}

func (r *remoteRenderer) counts() (frames, packets uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.packets
}
