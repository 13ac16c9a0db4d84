package transport

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// PeerState is the connection state of a registered peer.
type PeerState int

const (
	// PeerConnected means the connect exchange completed and the peer can
	// send and receive application data.
	PeerConnected PeerState = iota
	// PeerDisconnecting means a server-side disconnect is scheduled; no new
	// outbound data is accepted.
	PeerDisconnecting
)

// outPacket is an unacknowledged outbound data record awaiting an ack.
type outPacket struct {
	data     []byte
	sentAt   time.Time
	attempts int
}

// peer holds the per-connection reliability state for one remote address.
// All fields are guarded by the host mutex.
type peer struct {
	id    uuid.UUID
	addr  *net.UDPAddr
	state PeerState

	nextSeq uint32
	unacked map[uint32]*outPacket

	expected uint32
	pending  map[uint32][]byte
}

func newPeer(id uuid.UUID, addr *net.UDPAddr) *peer {
	return &peer{
		id:      id,
		addr:    addr,
		unacked: make(map[uint32]*outPacket),
		pending: make(map[uint32][]byte),
	}
}

func (p *peer) handleAck(seq uint32) {
	delete(p.unacked, seq)
}

// receive runs the in-order delivery logic for one inbound data record. It
// returns the payloads that became deliverable, oldest first. Duplicates and
// out-of-order arrivals return nil; the latter are buffered until the gap
// fills. Sequence numbers are not expected to wrap within a connection's
// lifetime.
func (p *peer) receive(seq uint32, payload []byte) [][]byte {
	if seq < p.expected {
		return nil
	}
	if seq > p.expected {
		if _, ok := p.pending[seq]; !ok {
			p.pending[seq] = payload
		}
		return nil
	}

	delivered := [][]byte{payload}
	p.expected++
	for {
		next, ok := p.pending[p.expected]
		if !ok {
			break
		}
		delete(p.pending, p.expected)
		delivered = append(delivered, next)
		p.expected++
	}
	return delivered
}
