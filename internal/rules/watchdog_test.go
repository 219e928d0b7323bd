package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hglynn/labclimate/internal/climate"
)

func TestIsStale(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	timeout := 60 * time.Second

	tests := []struct {
		name    string
		reading climate.Reading
		present bool
		now     time.Time
		want    bool
	}{
		{
			name: "missing reading is always stale",
			now:  base,
			want: true,
		},
		{
			name:    "fresh reading",
			reading: climate.Reading{ObservedAt: base},
			present: true,
			now:     base.Add(30 * time.Second),
			want:    false,
		},
		{
			name:    "exactly at timeout is still fresh",
			reading: climate.Reading{ObservedAt: base},
			present: true,
			now:     base.Add(60 * time.Second),
			want:    false,
		},
		{
			name:    "past timeout",
			reading: climate.Reading{ObservedAt: base},
			present: true,
			now:     base.Add(61 * time.Second),
			want:    true,
		},
		{
			name:    "reading from the future is fresh",
			reading: climate.Reading{ObservedAt: base.Add(time.Minute)},
			present: true,
			now:     base,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStale(tt.reading, tt.present, tt.now, timeout))
		})
	}
}
