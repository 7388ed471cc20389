package state

import (
	"math"
	"time"
)

const (
	// LinkDeleted is reported as the cost of a link that no longer exists.
	LinkDeleted = Cost(-1)
	// NoRoute is returned by next hop queries when the destination cannot be reached.
	NoRoute = NodeId("")
)

// Infinity is the distance of an unreachable vertex.
var Infinity = Cost(math.Inf(1))

var (
	// DefaultMaxCost bounds distance-vector routes; a route at or above it is treated as unreachable.
	// This is what eventually ends a count-to-infinity episode when the loop filter is off.
	DefaultMaxCost = Cost(1 << 16)
	// MaxPending is the number of out-of-order adverts held per source before a gap is abandoned.
	MaxPending = 1024
	// HistoryWindow is how many seqnos back a replaced advert is still kept for retransmission.
	HistoryWindow       = uint64(1024)
	RetransmitDedupTTL  = time.Second * 3
	DefaultLinkLatency  = time.Millisecond * 10
	DefaultMaxEvents    = 1_000_000
	LiveQuiescentPeriod = time.Millisecond * 200
	LiveDispatchBuffer  = 128
)
