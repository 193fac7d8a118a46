package wire

import (
	"fmt"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manyPTRs(n int) []Record {
	recs := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		target := fmt.Sprintf("instance-with-a-long-name-%03d._http._tcp.local.", i)
		recs = append(recs, Record{RR: NewPTR("_http._tcp.local.", target, 4500)})
	}
	return recs
}

func TestEncode_SplitsAnswers(t *testing.T) {
	out := &Outgoing{Response: true, Answers: manyPTRs(40)}

	packets, err := Encode(out, 512)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	total := 0
	for _, p := range packets {
		assert.LessOrEqual(t, len(p), 512)
		m, err := Decode(p)
		require.NoError(t, err)
		assert.True(t, m.Response)
		assert.False(t, m.Truncated, "应答报文不置 TC")
		total += len(m.Answers)
	}
	assert.Equal(t, 40, total)
}

func TestEncode_KnownAnswerOverflowSetsTC(t *testing.T) {
	out := &Outgoing{
		Questions: []Question{{Name: "_http._tcp.local.", Type: dns.TypePTR}},
		Answers:   manyPTRs(40),
	}

	packets, err := Encode(out, 512)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	for i, p := range packets {
		m, err := Decode(p)
		require.NoError(t, err)
		last := i == len(packets)-1
		assert.Equal(t, !last, m.Truncated, "packet %d", i)
		if i == 0 {
			assert.Len(t, m.Questions, 1)
		} else {
			assert.Empty(t, m.Questions, "后续报文只携带已知应答")
		}
	}
}

func TestEncode_Additionals(t *testing.T) {
	t.Run("放得下时放进最后一个包", func(t *testing.T) {
		packets, err := Encode(&Outgoing{
			Response:    true,
			Answers:     manyPTRs(1),
			Additionals: []Record{{RR: NewSRV("x._http._tcp.local.", "h.local.", 80, 120)}},
		}, 0)
		require.NoError(t, err)
		m, err := Decode(packets[0])
		require.NoError(t, err)
		assert.Len(t, m.Additionals, 1)
	})

	t.Run("放不下时丢弃", func(t *testing.T) {
		big := NewTXT("x._http._tcp.local.", []string{strings.Repeat("a", 220), strings.Repeat("b", 220)}, 4500)
		packets, err := Encode(&Outgoing{
			Response:    true,
			Answers:     manyPTRs(1),
			Additionals: []Record{{RR: big}},
		}, 512)
		require.NoError(t, err)
		require.Len(t, packets, 1)
		m, err := Decode(packets[0])
		require.NoError(t, err)
		assert.Empty(t, m.Additionals)
	})
}

func TestEncode_RecordTooLarge(t *testing.T) {
	big := NewTXT("x._http._tcp.local.", []string{
		strings.Repeat("a", 250), strings.Repeat("b", 250), strings.Repeat("c", 250),
	}, 4500)

	_, err := Encode(&Outgoing{Response: true, Answers: []Record{{RR: big}}}, 512)
	assert.ErrorIs(t, err, ErrRecordTooLarge)

	_, err = Encode(&Outgoing{
		Questions:   []Question{{Name: "x._http._tcp.local.", Type: dns.TypeANY}},
		Authorities: []Record{{RR: big}},
	}, 512)
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestEncode_DoesNotMutateInput(t *testing.T) {
	srv := NewSRV("x._http._tcp.local.", "h.local.", 80, 120)
	_, err := Encode(&Outgoing{Response: true, Answers: []Record{{RR: srv, CacheFlush: true}}}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(dns.ClassINET), srv.Hdr.Class)
}
