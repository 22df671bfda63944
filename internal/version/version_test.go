package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })
	Version, Commit, Date = version, commit, date
}

func TestGetInfo(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef1234567890", "2026-01-01T00:00:00Z")

	info := GetInfo()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abcdef1234567890", info.Commit)
	assert.Equal(t, "2026-01-01T00:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef1234567890", "2026-01-01T00:00:00Z")
	s := String()
	assert.Contains(t, s, "hwenc version 1.2.3")
	assert.Contains(t, s, "commit: abcdef12")
	assert.NotContains(t, s, "abcdef1234567890", "commit is shortened")
}

func TestString_DevBuild(t *testing.T) {
	withBuildInfo(t, "dev", "unknown", "unknown")
	s := String()
	assert.Contains(t, s, "hwenc version dev")
	assert.NotContains(t, s, "commit:")
}

func TestShort(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef1234567890", "unknown")
	assert.Equal(t, "hwenc 1.2.3 (abcdef12)", Short())

	withBuildInfo(t, "dev", "unknown", "unknown")
	assert.Equal(t, "hwenc dev", Short())
}

func TestJSON(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef1234567890", "2026-01-01T00:00:00Z")

	var info Info
	require.NoError(t, json.Unmarshal([]byte(JSON()), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abcdef1234567890", info.Commit)
	assert.NotEmpty(t, info.Platform)
}

func TestIsRelease(t *testing.T) {
	withBuildInfo(t, "dev", "unknown", "unknown")
	assert.False(t, IsRelease())

	withBuildInfo(t, "1.2.3", "abcdef1234567890", "unknown")
	assert.True(t, IsRelease())
}
