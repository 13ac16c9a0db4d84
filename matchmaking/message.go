package matchmaking

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/unicode/norm"
)

// Message type tags used on the wire.
const (
	msgTypeCreateTicket     = "create-ticket"
	msgTypeCreateTicketResp = "create-ticket-resp"
	msgTypeGetTicketResp    = "get-ticket-resp"
)

// ErrMalformedTicket is returned when an inbound payload cannot be decoded
// into a usable ticket. The offending peer is disconnected, never the loop.
var ErrMalformedTicket = errors.New("malformed ticket")

// ShiftJISCode is a connect code that arrives as an array of Shift-JIS byte
// values. The in-game name entry produces full-width characters, so the
// decoded string is NFKC-normalized before it is used as a grouping key.
type ShiftJISCode string

func (c *ShiftJISCode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var codes []int
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}

	buf := make([]byte, len(codes))
	for i, v := range codes {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("connect code byte %d out of range", v)
		}
		buf[i] = byte(v)
	}

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(buf)
	if err != nil {
		return err
	}

	*c = ShiftJISCode(norm.NFKC.String(string(decoded)))
	return nil
}

func (c ShiftJISCode) MarshalJSON() ([]byte, error) {
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(c))
	if err != nil {
		return nil, err
	}

	codes := make([]int, len(encoded))
	for i, b := range encoded {
		codes[i] = int(b)
	}
	return json.Marshal(codes)
}

// User is the identity block of a ticket, supplied by the client and opaque
// to matchmaking beyond its use as a grouping key.
type User struct {
	UID         string `json:"uid"`
	PlayKey     string `json:"playKey"`
	DisplayName string `json:"displayName"`
	ConnectCode string `json:"connectCode"`
}

// Search describes how the player wants to be matched. ConnectCode is only
// present for direct mode and names the intended opponent.
type Search struct {
	ConnectCode ShiftJISCode   `json:"connectCode,omitempty"`
	Mode        OnlinePlayMode `json:"mode"`
}

// CreateTicket is the inbound matchmaking request. A peer has at most one
// live ticket; a new one replaces the previous.
type CreateTicket struct {
	AppVersion   string `json:"appVersion"`
	IPAddressLAN string `json:"ipAddressLan"`
	Search       Search `json:"search"`
	User         User   `json:"user"`
}

// Player is one participant as rendered into a session descriptor.
// IsLocalPlayer is true only in the copy addressed to that player.
type Player struct {
	IsLocalPlayer bool           `json:"isLocalPlayer"`
	IPAddress     string         `json:"ipAddress"`
	IPAddressLAN  string         `json:"ipAddressLan"`
	Port          ControllerPort `json:"port"`
	UID           string         `json:"uid"`
	DisplayName   string         `json:"displayName"`
	ConnectCode   string         `json:"connectCode"`
}

// Message is an outbound matchmaking message. The set of implementations is
// closed so both response kinds are handled exhaustively at compile time.
type Message interface {
	messageType() string
}

// CreateTicketResponse acknowledges receipt of a ticket. Empty body.
type CreateTicketResponse struct{}

func (CreateTicketResponse) messageType() string { return msgTypeCreateTicketResp }

// GetTicketResponse is the full session descriptor pushed to every matched
// participant. Copies differ only in IsHost and the IsLocalPlayer flags.
type GetTicketResponse struct {
	LatestVersion string   `json:"latestVersion"`
	MatchID       string   `json:"matchId"`
	IsHost        bool     `json:"isHost"`
	IsAssigned    bool     `json:"isAssigned"`
	Players       []Player `json:"players"`
	Stages        []Stage  `json:"stages"`
}

func (GetTicketResponse) messageType() string { return msgTypeGetTicketResp }

// EncodeMessage renders an outbound message with its type tag injected.
func EncodeMessage(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	tag, err := json.Marshal(m.messageType())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag

	return json.Marshal(fields)
}

// DecodeMessage parses an outbound message back from its wire form.
func DecodeMessage(data []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case msgTypeCreateTicketResp:
		var m CreateTicketResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case msgTypeGetTicketResp:
		var m GetTicketResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", probe.Type)
	}
}

// DecodeTicket parses and validates an inbound create-ticket payload.
func DecodeTicket(data []byte) (*CreateTicket, error) {
	var probe struct {
		Type   string `json:"type"`
		Search struct {
			Mode *uint8 `json:"mode"`
		} `json:"search"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}
	if probe.Type != "" && probe.Type != msgTypeCreateTicket {
		return nil, fmt.Errorf("%w: unexpected message type %q", ErrMalformedTicket, probe.Type)
	}
	if probe.Search.Mode == nil {
		return nil, fmt.Errorf("%w: search.mode is missing", ErrMalformedTicket)
	}
	if !OnlinePlayMode(*probe.Search.Mode).Valid() {
		return nil, fmt.Errorf("%w: unknown play mode %d", ErrMalformedTicket, *probe.Search.Mode)
	}

	var ticket CreateTicket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}
	if ticket.User.UID == "" || ticket.User.ConnectCode == "" {
		return nil, fmt.Errorf("%w: incomplete user identity", ErrMalformedTicket)
	}
	if ticket.Search.Mode == ModeDirect && ticket.Search.ConnectCode == "" {
		return nil, fmt.Errorf("%w: direct search without a target connect code", ErrMalformedTicket)
	}
	return &ticket, nil
}
