package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeDriveKeys tests filtering, deduplication and ordering of the
// held-key set.
func TestNormalizeDriveKeys(t *testing.T) {
	assert.Equal(t, []string{"d", "w"}, NormalizeDriveKeys([]string{"w", "d", "w"}))
	assert.Equal(t, []string{"a", "s"}, NormalizeDriveKeys([]string{"s", "a"}))
	assert.Equal(t, []string{"w"}, NormalizeDriveKeys([]string{"w", "x", "q", "W"}))
	assert.Empty(t, NormalizeDriveKeys([]string{"up", "down"}))
	assert.Empty(t, NormalizeDriveKeys(nil))
}

// TestDriveCommand_Equal tests order-insensitive command comparison.
func TestDriveCommand_Equal(t *testing.T) {
	assert.True(t, DriveCommand{Keys: []string{"w", "d"}}.Equal(DriveCommand{Keys: []string{"d", "w"}}))
	assert.True(t, DriveCommand{Keys: []string{"w", "w"}}.Equal(DriveCommand{Keys: []string{"w"}}))
	assert.False(t, DriveCommand{Keys: []string{"w"}}.Equal(DriveCommand{Keys: []string{"w", "d"}}))
	assert.True(t, DriveCommand{}.Equal(DriveCommand{Keys: []string{"x"}}))
}

// TestDriveCommand_Normalize tests that normalization returns the canonical
// wire form.
func TestDriveCommand_Normalize(t *testing.T) {
	cmd := DriveCommand{Keys: []string{"d", "w", "d", "enter"}}
	assert.Equal(t, []string{"d", "w"}, cmd.Normalize().Keys)
}
