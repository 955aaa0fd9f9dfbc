package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBelowCapacity(t *testing.T) {
	r := NewRing(16)
	_, err := r.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(r.Snapshot()))
}

func TestRingWrapsKeepingNewest(t *testing.T) {
	r := NewRing(8)
	for _, s := range []string{"aaaa", "bbbb", "cccc"} {
		_, err := r.Write([]byte(s))
		require.NoError(t, err)
	}
	assert.Equal(t, "bbbbcccc", string(r.Snapshot()))
}

func TestRingOversizedWrite(t *testing.T) {
	r := NewRing(4)
	n, err := r.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n, "Write must report the full length")
	assert.Equal(t, "6789", string(r.Snapshot()))
}

func TestRingUnalignedWraps(t *testing.T) {
	r := NewRing(5)
	for _, s := range []string{"ab", "cde", "fg"} {
		_, _ = r.Write([]byte(s))
	}
	assert.Equal(t, "cdefg", string(r.Snapshot()))
}

func TestLoggerBeforeInitDiscards(t *testing.T) {
	Shutdown()
	// Must not panic, and component loggers must work pre-Init.
	Logger().Info("dropped")
	ForComponent("test").Info("also dropped")
}

func TestInitRoutesToRing(t *testing.T) {
	Init(Config{Level: "debug", RingSize: 1 << 12})
	defer Shutdown()

	ForComponent("test").Info("ring message", "k", "v")

	var out bytes.Buffer
	require.NoError(t, DumpRing(&out))
	assert.Contains(t, out.String(), "ring message")
	assert.Contains(t, out.String(), "component=test")
}

func TestLevelFiltering(t *testing.T) {
	Init(Config{Level: "warn", RingSize: 1 << 12})
	defer Shutdown()

	log := ForComponent("test")
	log.Info("quiet")
	log.Warn("loud")

	var out bytes.Buffer
	require.NoError(t, DumpRing(&out))
	assert.NotContains(t, out.String(), "quiet")
	assert.Contains(t, out.String(), "loud")
}

func TestJSONFormat(t *testing.T) {
	Init(Config{Format: "json", RingSize: 1 << 12})
	defer Shutdown()

	Logger().Info("structured")

	var out bytes.Buffer
	require.NoError(t, DumpRing(&out))
	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(line, "{"), "json output expected, got %q", line)
	assert.Contains(t, line, `"msg":"structured"`)
}
