package matchmaking

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"
)

// ErrGroupTooLarge means a matched group exceeds the mode's port pool. The
// session builder rejects it before any state is touched; no partial session
// is ever sent.
var ErrGroupTooLarge = errors.New("group exceeds mode port pool")

// sessionMember pairs a matched ticket with the source address the transport
// actually observed for that peer. The LAN address stays client-reported.
type sessionMember struct {
	ticket *CreateTicket
	addr   *net.UDPAddr
}

// matchID derives a human-auditable identifier. The timestamp alone can
// collide when two sessions form within the same second, so a short random
// suffix is appended.
func matchID(rng *rand.Rand, mode OnlinePlayMode, now time.Time) string {
	return fmt.Sprintf("mode.%s-%s-%04x", mode, now.UTC().Format(time.RFC3339), rng.Intn(0x10000))
}

// buildSession turns a matched group into one session descriptor per
// participant. Ports are drawn without replacement from the mode's pool and
// the host port uniformly from the full pool; a member hosts iff its
// assigned port equals the host port, which yields exactly one host in the
// two-player case.
func buildSession(rng *rand.Rand, latestVersion string, mode OnlinePlayMode, members []sessionMember) ([]GetTicketResponse, error) {
	ports := PortsFor(mode)
	if len(members) > len(ports) {
		return nil, fmt.Errorf("%w: %d players for %d ports", ErrGroupTooLarge, len(members), len(ports))
	}

	id := matchID(rng, mode, time.Now())
	stages := AllowedStages(mode)

	assigned := make([]ControllerPort, 0, len(members))
	for _, i := range rng.Perm(len(ports))[:len(members)] {
		assigned = append(assigned, ports[i])
	}
	hostPort := ports[rng.Intn(len(ports))]

	messages := make([]GetTicketResponse, 0, len(members))
	for i := range members {
		players := make([]Player, 0, len(members))
		for j, m := range members {
			players = append(players, Player{
				IsLocalPlayer: i == j,
				IPAddress:     m.addr.String(),
				IPAddressLAN:  m.ticket.IPAddressLAN,
				Port:          assigned[j],
				UID:           m.ticket.User.UID,
				DisplayName:   m.ticket.User.DisplayName,
				ConnectCode:   m.ticket.User.ConnectCode,
			})
		}
		messages = append(messages, GetTicketResponse{
			LatestVersion: latestVersion,
			MatchID:       id,
			IsHost:        assigned[i] == hostPort,
			IsAssigned:    true,
			Players:       players,
			Stages:        stages,
		})
	}
	return messages, nil
}
