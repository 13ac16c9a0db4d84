package matchmaking

import (
	"context"
	"io"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmelee/netplay-server/transport"
)

// fakeTransport feeds the loop a scripted event sequence and records what the
// loop sends back.
type fakeTransport struct {
	queue        []*transport.Event
	sent         map[uuid.UUID][][]byte
	disconnected []uuid.UUID
	addrs        map[uuid.UUID]*net.UDPAddr
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:  make(map[uuid.UUID][][]byte),
		addrs: make(map[uuid.UUID]*net.UDPAddr),
	}
}

func (f *fakeTransport) connect(addr string) uuid.UUID {
	id := uuid.New()
	udpAddr, _ := net.ResolveUDPAddr("udp", addr)
	f.addrs[id] = udpAddr
	f.queue = append(f.queue, &transport.Event{Type: transport.EventConnect, Peer: id})
	return id
}

func (f *fakeTransport) deliver(peer uuid.UUID, payload []byte) {
	f.queue = append(f.queue, &transport.Event{Type: transport.EventReceive, Peer: peer, Payload: payload})
}

func (f *fakeTransport) Poll(time.Duration) *transport.Event {
	if len(f.queue) == 0 {
		return nil
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	return ev
}

func (f *fakeTransport) Send(peer uuid.UUID, payload []byte) error {
	f.sent[peer] = append(f.sent[peer], payload)
	return nil
}

func (f *fakeTransport) Disconnect(peer uuid.UUID, _ time.Duration) {
	f.disconnected = append(f.disconnected, peer)
	delete(f.addrs, peer)
}

func (f *fakeTransport) Addr(peer uuid.UUID) (*net.UDPAddr, bool) {
	addr, ok := f.addrs[peer]
	return addr, ok
}

func newTestServer(ft *fakeTransport) *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(ft,
		WithLogger(log),
		WithRand(rand.New(rand.NewSource(42))),
		WithPollTimeout(time.Millisecond),
	)
}

func drain(s *Server, ft *fakeTransport) {
	for len(ft.queue) > 0 {
		s.iterate()
	}
	s.iterate()
}

func lastDescriptor(t *testing.T, ft *fakeTransport, peer uuid.UUID) GetTicketResponse {
	t.Helper()
	payloads := ft.sent[peer]
	require.NotEmpty(t, payloads)
	msg, err := DecodeMessage(payloads[len(payloads)-1])
	require.NoError(t, err)
	resp, ok := msg.(GetTicketResponse)
	require.True(t, ok, "last message should be a session descriptor")
	return resp
}

func TestServerMatchesMutualDirectTickets(t *testing.T) {
	ft := newFakeTransport()
	s := newTestServer(ft)

	p1 := ft.connect("203.0.113.7:50001")
	p2 := ft.connect("203.0.113.8:50002")
	ft.deliver(p1, ticketJSON(t, "u1", "TEST#001", ModeDirect, "TEST#002"))
	ft.deliver(p2, ticketJSON(t, "u2", "TEST#002", ModeDirect, "TEST#001"))

	drain(s, ft)

	// Each peer gets an ack then a session descriptor.
	require.Len(t, ft.sent[p1], 2)
	require.Len(t, ft.sent[p2], 2)

	ack, err := DecodeMessage(ft.sent[p1][0])
	require.NoError(t, err)
	assert.IsType(t, CreateTicketResponse{}, ack)

	d1 := lastDescriptor(t, ft, p1)
	d2 := lastDescriptor(t, ft, p2)
	assert.Equal(t, d1.MatchID, d2.MatchID)
	assert.NotEqual(t, d1.IsHost, d2.IsHost, "exactly one side hosts")
	assert.Equal(t, LatestClientVersion, d1.LatestVersion)
	require.Len(t, d1.Players, 2)
	assert.Equal(t, "203.0.113.7:50001", d1.Players[0].IPAddress)

	// Tickets are consumed; more iterations must not re-match the pair.
	s.iterate()
	s.iterate()
	assert.Len(t, ft.sent[p1], 2)
	assert.Len(t, ft.sent[p2], 2)
}

func TestServerSecondTicketReplacesFirst(t *testing.T) {
	ft := newFakeTransport()
	s := newTestServer(ft)

	p1 := ft.connect("203.0.113.7:50001")
	p2 := ft.connect("203.0.113.8:50002")
	ft.deliver(p1, ticketJSON(t, "u1", "TEST#001", ModeDirect, "WRONG#9"))
	drain(s, ft)

	ft.deliver(p1, ticketJSON(t, "u1", "TEST#001", ModeDirect, "TEST#002"))
	ft.deliver(p2, ticketJSON(t, "u2", "TEST#002", ModeDirect, "TEST#001"))
	drain(s, ft)

	// Two acks plus one descriptor for the replacing ticket.
	require.Len(t, ft.sent[p1], 3)
	d := lastDescriptor(t, ft, p1)
	assert.True(t, d.IsAssigned)
}

func TestServerRejectsUnsupportedMode(t *testing.T) {
	ft := newFakeTransport()
	s := newTestServer(ft)

	p1 := ft.connect("203.0.113.7:50001")
	ft.deliver(p1, ticketJSON(t, "u1", "TEST#001", ModeTeams, ""))
	drain(s, ft)

	assert.Contains(t, ft.disconnected, p1)
	assert.Empty(t, ft.sent[p1], "no ack for a rejected ticket")
}

func TestServerRejectsMalformedPayload(t *testing.T) {
	ft := newFakeTransport()
	s := newTestServer(ft)

	p1 := ft.connect("203.0.113.7:50001")
	p2 := ft.connect("203.0.113.8:50002")
	ft.deliver(p1, []byte("garbage"))
	ft.deliver(p2, ticketJSON(t, "u2", "TEST#002", ModeDirect, "TEST#001"))
	drain(s, ft)

	// The bad peer is dropped, the loop keeps serving the good one.
	assert.Contains(t, ft.disconnected, p1)
	require.Len(t, ft.sent[p2], 1)
	ack, err := DecodeMessage(ft.sent[p2][0])
	require.NoError(t, err)
	assert.IsType(t, CreateTicketResponse{}, ack)
}

func TestServerDefersGroupWhenPeerVanishes(t *testing.T) {
	ft := newFakeTransport()
	s := newTestServer(ft)

	p1 := ft.connect("203.0.113.7:50001")
	p2 := ft.connect("203.0.113.8:50002")
	ft.deliver(p1, ticketJSON(t, "u1", "TEST#001", ModeDirect, "TEST#002"))
	for len(ft.queue) > 0 {
		s.iterate()
	}

	// Second ticket lands while its peer's address is already gone.
	delete(ft.addrs, p2)
	ft.deliver(p2, ticketJSON(t, "u2", "TEST#002", ModeDirect, "TEST#001"))
	drain(s, ft)

	assert.Len(t, ft.sent[p1], 1, "ack only, no descriptor")
}

func TestServerRunStopsOnContextCancel(t *testing.T) {
	ft := newFakeTransport()
	s := newTestServer(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
