package matchmaking

import "github.com/google/uuid"

// directGroupSize caps a direct match at exactly two players, the size the
// session builder's port draw is defined for.
const directGroupSize = 2

// candidate is one row of the registry snapshot fed to the grouping engine.
type candidate struct {
	peer   uuid.UUID
	ticket *CreateTicket
	order  uint64
}

// pairKey collapses "A wants B" and "B wants A" into the same bucket by
// keying on the unordered pair of connect codes. A peer whose target equals
// its own code keys onto itself and can only match another peer making the
// same claim, so self-pairing needs no special case.
func pairKey(own, target string) string {
	if target < own {
		own, target = target, own
	}
	return own + "\x00" + target
}

// groupDirect partitions the snapshot into match-ready direct-mode groups.
// Buckets of one stay pending with no timeout; the peer simply waits for its
// counterpart's ticket on a later pass. Buckets of more than two emit the
// two earliest tickets and leave the rest pending.
func groupDirect(cands []candidate) [][]candidate {
	buckets := make(map[string][]candidate)
	var keys []string

	for _, c := range cands {
		if c.ticket.Search.Mode != ModeDirect {
			continue
		}
		key := pairKey(c.ticket.User.ConnectCode, string(c.ticket.Search.ConnectCode))
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], c)
	}

	var groups [][]candidate
	for _, key := range keys {
		bucket := buckets[key]
		if len(bucket) < 2 {
			continue
		}
		groups = append(groups, bucket[:directGroupSize])
	}
	return groups
}
