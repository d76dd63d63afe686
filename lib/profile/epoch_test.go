package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourOf(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want int64
	}{
		{"epoch", Epoch, 0},
		{"within first hour", Epoch.Add(59 * time.Minute), 0},
		{"one and a half hours", Epoch.Add(90 * time.Minute), 1},
		{"one day", Epoch.Add(24 * time.Hour), 24},
		{"before epoch", Epoch.Add(-time.Second), -1},
		{"exactly one hour before", Epoch.Add(-time.Hour), -1},
		{"other zone", time.Date(2019, 1, 1, 2, 0, 0, 0, time.FixedZone("CET", 3600)), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HourOf(tt.t))
		})
	}
}

func TestTimeOfRoundTrip(t *testing.T) {
	for _, h := range []int64{-5, 0, 1, 17000, 60000} {
		assert.Equal(t, h, HourOf(TimeOf(h)))
	}
}

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2024, 3, 5, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, int64(0), HourOf(StartOfDay(Epoch.Add(23*time.Hour))))
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "u1", UserKey(1))
	assert.Equal(t, "u100000", UserKey(100000))
}
