package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "preferences.json")

	p := LoadFrom(path)
	p.SetString("lastDirectory", "/tmp/scans")
	p.SetFloat("zoom", 1.5)
	p.SetBool("fitToWindow", true)
	require.NoError(t, p.Save())

	loaded := LoadFrom(path)
	assert.Equal(t, "/tmp/scans", loaded.String("lastDirectory"))
	assert.Equal(t, 1.5, loaded.Float("zoom", 0))
	assert.True(t, loaded.Bool("fitToWindow", false))
}

func TestFallbacks(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), "none.json"))

	assert.Equal(t, "", p.String("missing"))
	assert.Equal(t, 2.0, p.Float("missing", 2.0))
	assert.True(t, p.Bool("missing", true))
	assert.False(t, p.Bool("missing", false))
}
