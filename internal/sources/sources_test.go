package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_channel: -1001
sources:
  - ref: apiclub
    channel: -1002
    wall_limit: 30
  - ref: "114469067"
  - ref: " lentach "
`), 0o600))

	got, err := Load(path, -1, 100)

	require.NoError(t, err)
	assert.Equal(t, []Source{
		{Ref: "apiclub", ChannelID: -1002, WallLimit: 30},
		{Ref: "114469067", ChannelID: -1001, WallLimit: 100},
		{Ref: "lentach", ChannelID: -1001, WallLimit: 100},
	}, got)
}

func TestParse_DefaultChannelFromEnv(t *testing.T) {
	got, err := Parse([]byte("sources:\n  - ref: apiclub\n"), -777, 50)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(-777), got[0].ChannelID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "sources: []\n"},
		{name: "broken yaml", data: "sources: [\n"},
		{name: "empty ref", data: "sources:\n  - ref: ''\n"},
		{name: "duplicate", data: "sources:\n  - ref: apiclub\n  - ref: APIclub\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), 0, 100)
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("sources: []\n"), 0, 100)
	assert.ErrorIs(t, err, ErrNoSources)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yml"), 0, 100)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
