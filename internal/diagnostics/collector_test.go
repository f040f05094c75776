package diagnostics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_AccountsAndFlushes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	c := New(dir)

	c.AddFrame("input_0000001.pgm", []byte("abc"))
	c.AddFrame("input_0000002.pgm", []byte("defgh"))
	assert.Equal(t, int64(8), c.MemoryUsage())
	assert.Equal(t, 0, c.Written())

	require.NoError(t, c.Flush())
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, 2, c.Written())

	data, err := os.ReadFile(filepath.Join(dir, "input_0000002.pgm"))
	require.NoError(t, err)
	assert.Equal(t, []byte("defgh"), data)

	// A second flush with nothing buffered is a no-op.
	require.NoError(t, c.Flush())
	assert.Equal(t, 2, c.Written())
}

func TestCollector_ResetDropsWithoutWriting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	c := New(dir)

	c.AddFrame("input_0000001.pgm", []byte("abc"))
	c.Reset()
	assert.Equal(t, int64(0), c.MemoryUsage())

	require.NoError(t, c.Flush())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "nothing should have been written")
}

func TestEncodePGM(t *testing.T) {
	img := EncodePGM(2, 2, []byte{0, 64, 128, 255})
	assert.Equal(t, []byte("P5\n2 2\n255\n\x00\x40\x80\xff"), img)
}
