// Package topic parses station bus topics of the shape
// bss/<stationId>/<category>/<action> into a station id and an event kind.
package topic

import "strings"

type Kind int

const (
	KindUnknown Kind = iota
	KindAuthRequest
	KindSwapInitiate
	KindSwapActivity
	KindSwapRefused
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequest:
		return "auth_request"
	case KindSwapInitiate:
		return "swap_initiate"
	case KindSwapActivity:
		return "swap_activity"
	case KindSwapRefused:
		return "swap_refused"
	default:
		return "unknown"
	}
}

// UnknownStation is returned when the topic has no station segment. The
// relay favors availability over strict validation: a malformed topic is
// logged and dropped, never an error.
const UnknownStation = "unknown"

// Subscriptions are the inbound filters the supervisor subscribes to, with
// the station id as a wildcard segment.
var Subscriptions = []string{
	"bss/+/user/auth/request",
	"bss/+/swap/initiate",
	"bss/+/swap/activity",
	"bss/+/swap/refused",
}

// Parse extracts the station id and classifies the event kind. Topics that
// do not start with bss/<stationId>/ yield UnknownStation; unrecognized
// categories yield KindUnknown so new bus topics never break the relay.
func Parse(topic string) (stationID string, kind Kind) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != "bss" || parts[1] == "" {
		return UnknownStation, KindUnknown
	}
	stationID = parts[1]

	switch strings.Join(parts[2:], "/") {
	case "user/auth/request":
		kind = KindAuthRequest
	case "swap/initiate":
		kind = KindSwapInitiate
	case "swap/activity":
		kind = KindSwapActivity
	case "swap/refused":
		kind = KindSwapRefused
	default:
		kind = KindUnknown
	}
	return stationID, kind
}

// Response topics toward the originating station.
func AuthResponse(stationID string) string     { return "bss/" + stationID + "/user/auth/response" }
func SwapConfirmation(stationID string) string { return "bss/" + stationID + "/swap/confirmation" }
func SwapError(stationID string) string        { return "bss/" + stationID + "/swap/error" }
