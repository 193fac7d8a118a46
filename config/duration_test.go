package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"字符串", `"250ms"`, 250 * time.Millisecond},
		{"复合字符串", `"1h15m"`, 75 * time.Minute},
		{"纳秒数", `1000000000`, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			assert.Equal(t, tt.want, d.Duration())
		})
	}

	t.Run("无效值", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
		assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	})

	t.Run("输出为字符串", func(t *testing.T) {
		data, err := json.Marshal(Duration(1500 * time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, `"1.5s"`, string(data))
	})
}

func TestDuration_Seconds(t *testing.T) {
	assert.Equal(t, uint32(4500), Duration(75*time.Minute).Seconds())
	assert.Equal(t, uint32(0), Duration(999*time.Millisecond).Seconds())
}
