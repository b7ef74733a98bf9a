package probe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration([]byte(`{"format": {"duration": "13.042000"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 13.042, d, 1e-9)
}

func TestParseDurationRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing", `{"format": {}}`},
		{"not available", `{"format": {"duration": "N/A"}}`},
		{"zero", `{"format": {"duration": "0.000000"}}`},
		{"negative", `{"format": {"duration": "-1"}}`},
		{"garbage", `{"format": {"duration": "abc"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDuration([]byte(tt.in))
			assert.ErrorIs(t, err, ErrNoDuration)
		})
	}
}

func TestParseDurationBadJSON(t *testing.T) {
	_, err := ParseDuration([]byte(`not json`))
	assert.Error(t, err)
}

func TestDurationMissingBinary(t *testing.T) {
	p := FFprobe{Bin: filepath.Join(t.TempDir(), "no-ffprobe")}
	_, err := p.Duration(context.Background(), "narration.mp3")
	assert.Error(t, err)
}
