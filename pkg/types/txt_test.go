package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxtRecords_Set(t *testing.T) {
	var txt TxtRecords
	txt.Set("a", "1")
	txt.Set("b")
	txt.Set("c", "x")
	txt.Set("A", "2")

	t.Run("后出现的值覆盖，位置不变", func(t *testing.T) {
		assert.Len(t, txt, 3)
		assert.Equal(t, TxtRecord{Key: "A", Value: "2", HasValue: true}, txt[0])
	})

	t.Run("布尔属性", func(t *testing.T) {
		v, ok := txt.Get("b")
		assert.True(t, ok)
		assert.Empty(t, v)
		assert.Equal(t, "b", txt[1].String())
	})

	t.Run("Map", func(t *testing.T) {
		assert.Equal(t, map[string]string{"A": "2", "b": "", "c": "x"}, txt.Map())
	})
}

func TestParseTxtRecord(t *testing.T) {
	tests := []struct {
		in   string
		want TxtRecord
	}{
		{"a=1", TxtRecord{Key: "a", Value: "1", HasValue: true}},
		{"b", TxtRecord{Key: "b"}},
		{"c=", TxtRecord{Key: "c", HasValue: true}},
		{"url=http://x/?q=1", TxtRecord{Key: "url", Value: "http://x/?q=1", HasValue: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTxtRecord(tt.in), tt.in)
		assert.Equal(t, tt.in, tt.want.String())
	}
}

func TestTxtFromStrings(t *testing.T) {
	txt := TxtFromStrings([]string{"", "a=1", "=bad", "b", "a=3"})
	assert.Equal(t, TxtRecords{
		{Key: "a", Value: "3", HasValue: true},
		{Key: "b"},
	}, txt)

	assert.Nil(t, TxtFromStrings([]string{""}))
}

func TestTxtRecords_CloneEqual(t *testing.T) {
	var txt TxtRecords
	txt.Set("a", "1")
	c := txt.Clone()
	assert.True(t, txt.Equal(c))

	c.Set("a", "2")
	assert.False(t, txt.Equal(c))
	v, _ := txt.Get("a")
	assert.Equal(t, "1", v)
}
