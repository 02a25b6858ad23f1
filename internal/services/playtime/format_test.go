package playtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0 min"},
		{45, "45 min"},
		{60, "1h 0m"},
		{125, "2h 5m"},
		{1439, "23h 59m"},
		{1440, "1d 0h 0m"},
		{3*1440 + 4*60, "3d 4h 0m"},
		{-5, "0 min"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.minutes))
		})
	}
}
