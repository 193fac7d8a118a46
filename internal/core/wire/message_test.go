package wire

import (
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_StripsClassTopBit(t *testing.T) {
	packets, err := Encode(&Outgoing{
		Response: true,
		Answers: []Record{
			{RR: NewSRV("x._http._tcp.local.", "h.local.", 80, 120), CacheFlush: true},
			{RR: NewPTR("_http._tcp.local.", "x._http._tcp.local.", 4500)},
		},
		Additionals: []Record{
			{RR: NewAddr("h.local.", netip.MustParseAddr("10.0.0.5"), 120), CacheFlush: true},
		},
	}, 0)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	m, err := Decode(packets[0])
	require.NoError(t, err)
	assert.True(t, m.Response)
	assert.True(t, m.Authoritative)
	require.Len(t, m.Answers, 2)

	srv := m.Answers[0]
	assert.True(t, srv.CacheFlush)
	assert.Equal(t, uint16(dns.ClassINET), srv.RR.Header().Class)
	assert.False(t, m.Answers[1].CacheFlush)

	var types []uint16
	for r := range m.Records() {
		types = append(types, r.Type())
	}
	assert.Equal(t, []uint16{dns.TypeSRV, dns.TypePTR, dns.TypeA}, types)
	assert.Equal(t, SectionAdditional, m.Additionals[0].Section)
}

func TestDecode_Question(t *testing.T) {
	packets, err := Encode(&Outgoing{
		Questions: []Question{
			{Name: "x._http._tcp.local.", Type: dns.TypeANY, UnicastResponse: true},
			{Name: "_http._tcp.local.", Type: dns.TypePTR},
		},
		Authorities: []Record{{RR: NewSRV("x._http._tcp.local.", "h.local.", 80, 120)}},
	}, 0)
	require.NoError(t, err)

	m, err := Decode(packets[0])
	require.NoError(t, err)
	assert.False(t, m.Response)
	assert.True(t, m.IsProbe())
	assert.Equal(t, []Question{
		{Name: "x._http._tcp.local.", Type: dns.TypeANY, UnicastResponse: true},
		{Name: "_http._tcp.local.", Type: dns.TypePTR},
	}, m.Questions)
}

func TestDecode_Rejects(t *testing.T) {
	t.Run("截断数据", func(t *testing.T) {
		_, err := Decode([]byte{0, 1, 2})
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("opcode 非 0", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.Opcode = dns.OpcodeUpdate
		data, err := msg.Pack()
		require.NoError(t, err)
		_, err = Decode(data)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rcode 非 0", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.Response = true
		msg.Rcode = dns.RcodeNameError
		data, err := msg.Pack()
		require.NoError(t, err)
		_, err = Decode(data)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestRecords_SkipsUnsupported(t *testing.T) {
	msg := new(dns.Msg)
	msg.Response = true
	msg.Answer = []dns.RR{
		&dns.CNAME{Hdr: dns.RR_Header{Name: "a.local.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 10}, Target: "b.local."},
		&dns.A{Hdr: dns.RR_Header{Name: "b.local.", Rrtype: dns.TypeA, Class: dns.ClassCHAOS, Ttl: 10}, A: []byte{1, 2, 3, 4}},
		NewPTR("_x._tcp.local.", "i._x._tcp.local.", 10),
	}
	data, err := msg.Pack()
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)

	var got []Record
	for r := range m.Records() {
		got = append(got, r)
	}
	require.Len(t, got, 1)
	assert.Equal(t, dns.TypePTR, got[0].Type())
}
