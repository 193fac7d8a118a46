package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocol(t *testing.T) {
	cases := map[string]Protocol{
		"":      ProtocolAny,
		"any":   ProtocolAny,
		"v4":    ProtocolIPv4,
		"IPv4":  ProtocolIPv4,
		"6":     ProtocolIPv6,
		" ipv6": ProtocolIPv6,
	}
	for in, want := range cases {
		got, err := ParseProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProtocol("ipx")
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestProtocol_Matches(t *testing.T) {
	assert.True(t, ProtocolAny.Matches(ProtocolIPv4))
	assert.True(t, ProtocolAny.Matches(ProtocolIPv6))
	assert.True(t, ProtocolIPv4.Matches(ProtocolIPv4))
	assert.False(t, ProtocolIPv4.Matches(ProtocolIPv6))
	assert.False(t, Protocol(7).Valid())
	assert.Equal(t, "protocol(7)", Protocol(7).String())
}
