package bgm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTracks(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("ID3"), 0644))
	}
	return dir
}

func TestResolve(t *testing.T) {
	dir := writeTracks(t, "missed_moment.mp3", "Mystery.mp3", "cover.jpg", "horror.wav")

	tests := []struct {
		name     string
		category string
		want     string
		ok       bool
	}{
		{"case-insensitive stem", "Missed_Moment", "missed_moment.mp3", true},
		{"exact file", "Mystery", "Mystery.mp3", true},
		{"lowercase request for capitalised file", "mystery", "Mystery.mp3", true},
		{"surrounding spaces", "  mystery ", "Mystery.mp3", true},
		{"unknown category", "Unknown", "", false},
		{"empty category", "", "", false},
		{"wrong extension ignored", "horror", "", false},
		{"non-mp3 stem ignored", "cover", "", false},
		{"path traversal", "../etc/passwd", "", false},
	}
	r := NewResolver(dir, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.category)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, filepath.Join(dir, tt.want), got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestResolveMissingDirectory(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	got, ok := r.Resolve("Mystery")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestResolveIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "calm.mp3"), 0755))
	_, ok := NewResolver(dir, nil).Resolve("calm")
	assert.False(t, ok)
}

func TestResolveUnicodeCategory(t *testing.T) {
	dir := writeTracks(t, "straße.mp3")
	got, ok := NewResolver(dir, zap.NewNop()).Resolve("STRASSE")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "straße.mp3"), got)
}
