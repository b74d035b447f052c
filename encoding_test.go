package rtreedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetIntRoundTripSigned(t *testing.T) {
	cases := []struct {
		v    int64
		size int
	}{
		{0, 1}, {127, 1}, {-128, 1},
		{1000, 4}, {-1000, 4}, {2147483647, 4}, {-2147483648, 4},
		{9223372036854775807, 8}, {-9223372036854775808, 8},
	}
	for _, c := range cases {
		buf := make([]byte, c.size)
		putInt(buf, c.v, c.size)
		got := getInt(buf, c.size)
		require.Equal(t, c.v, got, "size=%d v=%d", c.size, c.v)
	}
}

func TestPutGetUintRoundTrip(t *testing.T) {
	cases := []struct {
		v    uint64
		size int
	}{
		{0, 1}, {255, 1}, {65535, 2}, {4294967295, 4}, {18446744073709551615, 8},
	}
	for _, c := range cases {
		buf := make([]byte, c.size)
		putUint(buf, c.v, c.size)
		got := getUint(buf, c.size)
		require.Equal(t, c.v, got, "size=%d v=%d", c.size, c.v)
	}
}

func TestGetIntSignExtendsNarrowWidths(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	require.Equal(t, int64(-1), getInt(buf, 2))
}
