// Package transport implements the reliable-ordered UDP session layer the
// matchmaking loop runs on. Datagrams on the single logical channel carry a
// sequence number, are acknowledged by the receiver, retransmitted until
// acked, and delivered to the application strictly in order. The host knows
// nothing about tickets or sessions; application state lives with the caller.
package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventType discriminates transport events.
type EventType int

const (
	EventConnect EventType = iota
	EventDisconnect
	EventReceive
)

// Event is one transport occurrence, delivered through Poll. Payload is set
// for EventReceive only.
type Event struct {
	Type    EventType
	Peer    uuid.UUID
	Payload []byte
}

var (
	ErrPeerNotFound = errors.New("peer not found")
	ErrHostStopped  = errors.New("host stopped")
)

const (
	defaultReadBufferSize     = 2048
	defaultMaxPeers           = 64
	defaultEventBuffer        = 256
	defaultRetransmitTimeout  = 200 * time.Millisecond
	defaultRetransmitInterval = 50 * time.Millisecond
	defaultMaxRetries         = 10
)

// Host owns the UDP socket and the per-peer reliability state.
type Host struct {
	conn           *net.UDPConn
	readBufferSize int
	maxPeers       int
	rto            time.Duration
	maxRetries     int
	log            logrus.FieldLogger

	mu     sync.Mutex
	peers  map[uuid.UUID]*peer
	byAddr map[string]*peer

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// HostConfig carries the required parameters for a new Host.
type HostConfig struct {
	ListenAddr *net.UDPAddr
	MaxPeers   int
}

type HostOption func(*Host)

// WithLogger sets the host logger.
func WithLogger(l logrus.FieldLogger) HostOption {
	return func(h *Host) { h.log = l }
}

// WithRetransmitTimeout sets how long an unacked record waits before resend.
func WithRetransmitTimeout(d time.Duration) HostOption {
	return func(h *Host) { h.rto = d }
}

// WithMaxRetries sets the resend attempts before a peer is declared dead.
func WithMaxRetries(n int) HostOption {
	return func(h *Host) { h.maxRetries = n }
}

// WithReadBufferSize sets the datagram read buffer size.
func WithReadBufferSize(n int) HostOption {
	return func(h *Host) { h.readBufferSize = n }
}

// NewHost binds the UDP socket and prepares the host. Call Serve in its own
// goroutine to start processing.
func NewHost(cfg HostConfig, opts ...HostOption) (*Host, error) {
	conn, err := net.ListenUDP("udp", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	h := &Host{
		conn:           conn,
		readBufferSize: defaultReadBufferSize,
		maxPeers:       cfg.MaxPeers,
		rto:            defaultRetransmitTimeout,
		maxRetries:     defaultMaxRetries,
		log:            logrus.StandardLogger(),
		peers:          make(map[uuid.UUID]*peer),
		byAddr:         make(map[string]*peer),
		events:         make(chan Event, defaultEventBuffer),
		stop:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.maxPeers <= 0 {
		h.maxPeers = defaultMaxPeers
	}

	return h, nil
}

// LocalAddr returns the bound UDP address.
func (h *Host) LocalAddr() *net.UDPAddr {
	return h.conn.LocalAddr().(*net.UDPAddr)
}

// Serve reads datagrams and drives retransmission until Stop is called.
func (h *Host) Serve() {
	h.wg.Add(1)
	go h.retransmitLoop()

	h.log.Infof("transport host listening on udp://%s", h.conn.LocalAddr())

	buf := make([]byte, h.readBufferSize)
	for {
		n, addr, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			h.log.WithError(err).Warn("udp read failed")
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		h.handleDatagram(data, addr)
	}
}

// Stop closes the socket and stops the retransmission loop. Pending events
// already queued remain readable through Poll. Safe to call more than once.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		_ = h.conn.Close()
		h.wg.Wait()
	})
}

// Poll returns the next transport event, or nil if none arrived within the
// timeout. At most one event is returned per call.
func (h *Host) Poll(timeout time.Duration) *Event {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-h.events:
		return &ev
	case <-timer.C:
		return nil
	}
}

// Send queues a payload for reliable-ordered delivery to the peer.
func (h *Host) Send(id uuid.UUID, payload []byte) error {
	select {
	case <-h.stop:
		return ErrHostStopped
	default:
	}

	h.mu.Lock()
	p, ok := h.peers[id]
	if !ok || p.state != PeerConnected {
		h.mu.Unlock()
		return ErrPeerNotFound
	}

	seq := p.nextSeq
	p.nextSeq++
	data := marshalRecord(record{typ: recordData, seq: seq, payload: payload})
	p.unacked[seq] = &outPacket{data: data, sentAt: time.Now(), attempts: 1}
	addr := p.addr
	h.mu.Unlock()

	return h.writeTo(addr, data)
}

// Disconnect drops the peer after the given delay. Zero disconnects
// immediately. Server-initiated disconnects do not emit an event.
func (h *Host) Disconnect(id uuid.UUID, delay time.Duration) {
	h.mu.Lock()
	p, ok := h.peers[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	p.state = PeerDisconnecting
	h.mu.Unlock()

	if delay <= 0 {
		h.finishDisconnect(id)
		return
	}
	time.AfterFunc(delay, func() { h.finishDisconnect(id) })
}

// Addr returns the remote address observed for a peer.
func (h *Host) Addr(id uuid.UUID) (*net.UDPAddr, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.peers[id]
	if !ok {
		return nil, false
	}
	return p.addr, true
}

// Peers lists the ids of all fully connected peers.
func (h *Host) Peers() []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(h.peers))
	for id, p := range h.peers {
		if p.state == PeerConnected {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Host) handleDatagram(data []byte, addr *net.UDPAddr) {
	rec, err := parseRecord(data)
	if err != nil {
		h.log.WithError(err).WithField("addr", addr).Warn("dropping datagram")
		return
	}

	var out []Event

	h.mu.Lock()
	p := h.byAddr[addr.String()]

	switch rec.typ {
	case recordConnect:
		if p != nil {
			// Handshake retry; re-ack so the client settles.
			_ = h.writeTo(addr, marshalRecord(record{typ: recordConnectAck}))
			break
		}
		if len(h.peers) >= h.maxPeers {
			h.log.WithField("addr", addr).Warn("connection refused, host full")
			break
		}
		p = newPeer(uuid.New(), addr)
		h.peers[p.id] = p
		h.byAddr[addr.String()] = p
		_ = h.writeTo(addr, marshalRecord(record{typ: recordConnectAck}))
		out = append(out, Event{Type: EventConnect, Peer: p.id})

	case recordData:
		if p == nil {
			break
		}
		// Ack unconditionally; duplicates mean a lost ack.
		_ = h.writeTo(addr, marshalRecord(record{typ: recordAck, seq: rec.seq}))
		for _, payload := range p.receive(rec.seq, rec.payload) {
			out = append(out, Event{Type: EventReceive, Peer: p.id, Payload: payload})
		}

	case recordAck:
		if p != nil {
			p.handleAck(rec.seq)
		}

	case recordDisconnect:
		if p != nil {
			delete(h.peers, p.id)
			delete(h.byAddr, addr.String())
			out = append(out, Event{Type: EventDisconnect, Peer: p.id})
		}

	case recordConnectAck:
		// Client-side record; nothing to do on the host.
	}
	h.mu.Unlock()

	for _, ev := range out {
		h.emit(ev)
	}
}

func (h *Host) finishDisconnect(id uuid.UUID) {
	h.mu.Lock()
	p, ok := h.peers[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, id)
	delete(h.byAddr, p.addr.String())
	addr := p.addr
	h.mu.Unlock()

	_ = h.writeTo(addr, marshalRecord(record{typ: recordDisconnect}))
}

func (h *Host) retransmitLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(defaultRetransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			h.retransmit(now)
		}
	}
}

// retransmit resends every unacked record older than the retransmission
// timeout and declares peers dead once a record exhausts its retries.
func (h *Host) retransmit(now time.Time) {
	var dead []*peer

	h.mu.Lock()
	for _, p := range h.peers {
		expired := false
		for _, pkt := range p.unacked {
			if now.Sub(pkt.sentAt) < h.rto {
				continue
			}
			if pkt.attempts >= h.maxRetries {
				expired = true
				break
			}
			pkt.attempts++
			pkt.sentAt = now
			_ = h.writeTo(p.addr, pkt.data)
		}
		if expired {
			dead = append(dead, p)
		}
	}
	for _, p := range dead {
		delete(h.peers, p.id)
		delete(h.byAddr, p.addr.String())
	}
	h.mu.Unlock()

	for _, p := range dead {
		h.log.WithField("peer", p.id).Warn("peer unresponsive, dropping")
		h.emit(Event{Type: EventDisconnect, Peer: p.id})
	}
}

func (h *Host) emit(ev Event) {
	select {
	case h.events <- ev:
	case <-h.stop:
	}
}

func (h *Host) writeTo(addr *net.UDPAddr, data []byte) error {
	_, err := h.conn.WriteToUDP(data, addr)
	return err
}
