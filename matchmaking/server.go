// Package matchmaking implements the netplay matchmaking engine: the wire
// codec for tickets and session descriptors, the peer ticket registry, the
// direct-mode grouping engine, the game session builder, and the polling
// loop that ties them to the transport host.
package matchmaking

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openmelee/netplay-server/transport"
)

// LatestClientVersion is advertised in every session descriptor and in the
// public user API.
const LatestClientVersion = "2.5.1"

// ErrUnsupportedMode means a peer requested a mode with no grouping rule.
// The peer is disconnected; the loop carries on.
var ErrUnsupportedMode = errors.New("play mode not implemented")

const defaultPollTimeout = time.Second

// Transport is the reliable-ordered session layer the loop drives.
// Satisfied by *transport.Host.
type Transport interface {
	Poll(timeout time.Duration) *transport.Event
	Send(peer uuid.UUID, payload []byte) error
	Disconnect(peer uuid.UUID, delay time.Duration)
	Addr(peer uuid.UUID) (*net.UDPAddr, bool)
}

// Server is the matchmaking loop. It owns the peer ticket registry outright;
// everything below Run executes on a single goroutine, so registry access,
// grouping, and session building are atomic with respect to each other.
type Server struct {
	host        Transport
	registry    *registry
	rng         *rand.Rand
	log         logrus.FieldLogger
	pollTimeout time.Duration
	version     string
}

type ServerOption func(*Server)

// WithLogger sets the loop logger.
func WithLogger(l logrus.FieldLogger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithPollTimeout bounds the transport poll per iteration.
func WithPollTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.pollTimeout = d }
}

// WithRand sets the randomness source used for port draws and match ids.
func WithRand(r *rand.Rand) ServerOption {
	return func(s *Server) { s.rng = r }
}

// WithLatestVersion overrides the client version advertised to players.
func WithLatestVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

func NewServer(host Transport, opts ...ServerOption) *Server {
	s := &Server{
		host:        host,
		registry:    newRegistry(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         logrus.StandardLogger(),
		pollTimeout: defaultPollTimeout,
		version:     LatestClientVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the loop until the context is canceled. Each iteration polls
// the transport once, then re-scans the whole registry for completed pairs.
// The re-scan is deliberate: either side of a pair may submit its ticket in
// a different iteration, and scanning discovers the match as soon as both
// tickets coexist.
func (s *Server) Run(ctx context.Context) {
	s.log.Info("matchmaking loop started")
	for ctx.Err() == nil {
		s.iterate()
	}
	s.log.Info("matchmaking loop stopped")
}

// iterate runs one poll/group/dispatch cycle.
func (s *Server) iterate() {
	if ev := s.host.Poll(s.pollTimeout); ev != nil {
		s.handleEvent(ev)
	}
	s.dispatchReadyGroups()
}

func (s *Server) handleEvent(ev *transport.Event) {
	switch ev.Type {
	case transport.EventConnect:
		s.registry.add(ev.Peer)
		s.log.WithField("peer", ev.Peer).Info("peer connected")
	case transport.EventDisconnect:
		s.registry.remove(ev.Peer)
		s.log.WithField("peer", ev.Peer).Info("peer disconnected")
	case transport.EventReceive:
		s.handleTicket(ev.Peer, ev.Payload)
	}
}

// handleTicket ingests one inbound payload. Malformed payloads and
// unsupported modes both end in a disconnect; there is no structured
// rejection message in the protocol.
func (s *Server) handleTicket(peer uuid.UUID, payload []byte) {
	ticket, err := DecodeTicket(payload)
	if err != nil {
		s.log.WithField("peer", peer).WithError(err).Warn("rejecting peer")
		s.dropPeer(peer)
		return
	}

	if ticket.Search.Mode != ModeDirect {
		s.log.WithFields(logrus.Fields{
			"peer": peer,
			"mode": ticket.Search.Mode.String(),
		}).WithError(ErrUnsupportedMode).Warn("rejecting peer")
		s.dropPeer(peer)
		return
	}

	s.registry.setTicket(peer, ticket)
	s.log.WithFields(logrus.Fields{
		"peer":        peer,
		"connectCode": ticket.User.ConnectCode,
		"target":      string(ticket.Search.ConnectCode),
	}).Info("ticket registered")

	ack, err := EncodeMessage(CreateTicketResponse{})
	if err != nil {
		s.log.WithError(err).Error("encoding ticket ack")
		return
	}
	if err := s.host.Send(peer, ack); err != nil {
		s.log.WithField("peer", peer).WithError(err).Warn("sending ticket ack")
	}
}

func (s *Server) dropPeer(peer uuid.UUID) {
	s.host.Disconnect(peer, 0)
	s.registry.remove(peer)
}

func (s *Server) dispatchReadyGroups() {
	for _, group := range groupDirect(s.registry.ticketed()) {
		s.dispatchGroup(ModeDirect, group)
	}
}

// dispatchGroup builds the session for one ready group, sends every
// descriptor, and clears the members' tickets so the same tickets cannot
// match again next iteration.
func (s *Server) dispatchGroup(mode OnlinePlayMode, group []candidate) {
	members := make([]sessionMember, 0, len(group))
	for _, c := range group {
		addr, ok := s.host.Addr(c.peer)
		if !ok {
			// Peer vanished between snapshot and dispatch; its disconnect
			// event will clean the registry, regroup next pass.
			s.log.WithField("peer", c.peer).Warn("matched peer has no address, deferring group")
			return
		}
		members = append(members, sessionMember{ticket: c.ticket, addr: addr})
	}

	messages, err := buildSession(s.rng, s.version, mode, members)
	if err != nil {
		s.log.WithError(err).Error("building session")
		return
	}

	s.log.WithFields(logrus.Fields{
		"matchId": messages[0].MatchID,
		"players": len(members),
	}).Info("session created")

	for i, c := range group {
		payload, err := EncodeMessage(messages[i])
		if err != nil {
			s.log.WithError(err).Error("encoding session descriptor")
			continue
		}
		// One failed send must not stop the other recipients.
		if err := s.host.Send(c.peer, payload); err != nil {
			s.log.WithField("peer", c.peer).WithError(err).Warn("sending session descriptor")
		}
	}

	for _, c := range group {
		s.registry.clearTicket(c.peer)
	}
}
