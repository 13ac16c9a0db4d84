package matchmaking

import (
	"sort"

	"github.com/google/uuid"
)

// entry tracks one connected peer and its current ticket, if any.
type entry struct {
	ticket *CreateTicket
	order  uint64
}

// registry is the set of connected peers keyed by transport peer id. It is
// owned by the matchmaking loop and never shared across goroutines, so all
// access is unsynchronized by design.
type registry struct {
	peers map[uuid.UUID]*entry
	next  uint64
}

func newRegistry() *registry {
	return &registry{peers: make(map[uuid.UUID]*entry)}
}

func (r *registry) add(peer uuid.UUID) {
	if _, ok := r.peers[peer]; !ok {
		r.peers[peer] = &entry{}
	}
}

func (r *registry) remove(peer uuid.UUID) {
	delete(r.peers, peer)
}

// setTicket attaches a ticket to a peer, replacing any prior one. The
// arrival order is recorded so grouping ties break earliest-ticket-first.
func (r *registry) setTicket(peer uuid.UUID, ticket *CreateTicket) {
	e, ok := r.peers[peer]
	if !ok {
		e = &entry{}
		r.peers[peer] = e
	}
	r.next++
	e.ticket = ticket
	e.order = r.next
}

// clearTicket returns a peer to the no-ticket state without dropping the
// connection. Called for every member of a dispatched session so a ticket
// can never produce two matches.
func (r *registry) clearTicket(peer uuid.UUID) {
	if e, ok := r.peers[peer]; ok {
		e.ticket = nil
	}
}

// ticketed snapshots all peers holding a live ticket, ordered by ticket
// arrival.
func (r *registry) ticketed() []candidate {
	cands := make([]candidate, 0, len(r.peers))
	for id, e := range r.peers {
		if e.ticket != nil {
			cands = append(cands, candidate{peer: id, ticket: e.ticket, order: e.order})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].order < cands[j].order })
	return cands
}
