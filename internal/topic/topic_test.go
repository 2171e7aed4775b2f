package topic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseClassifiesStationEvents(t *testing.T) {
	cases := []struct {
		topic   string
		station string
		kind    Kind
	}{
		{"bss/station-7/user/auth/request", "station-7", KindAuthRequest},
		{"bss/station-7/swap/initiate", "station-7", KindSwapInitiate},
		{"bss/station-7/swap/activity", "station-7", KindSwapActivity},
		{"bss/station-7/swap/refused", "station-7", KindSwapRefused},
	}

	for _, tc := range cases {
		station, kind := Parse(tc.topic)
		require.Equal(t, tc.station, station, tc.topic)
		require.Equal(t, tc.kind, kind, tc.topic)
	}
}

func TestParseMalformedTopicYieldsUnknownStation(t *testing.T) {
	station, kind := Parse("foo/bar")
	require.Equal(t, UnknownStation, station)
	require.Equal(t, KindUnknown, kind)

	station, kind = Parse("bss")
	require.Equal(t, UnknownStation, station)
	require.Equal(t, KindUnknown, kind)

	station, kind = Parse("bss//swap/activity")
	require.Equal(t, UnknownStation, station)
	require.Equal(t, KindUnknown, kind)
}

func TestParseUnknownCategoryKeepsStation(t *testing.T) {
	station, kind := Parse("bss/station-3/firmware/update")
	require.Equal(t, "station-3", station)
	require.Equal(t, KindUnknown, kind)
}

func TestResponseTopics(t *testing.T) {
	require.Equal(t, "bss/station-1/user/auth/response", AuthResponse("station-1"))
	require.Equal(t, "bss/station-1/swap/confirmation", SwapConfirmation("station-1"))
	require.Equal(t, "bss/station-1/swap/error", SwapError("station-1"))
}
