package pm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/km0e/dv/internal/osclass"
)

func TestLookupExactDistro(t *testing.T) {
	m, ok := Lookup(osclass.Linux(osclass.DistroAlpine))
	assert.True(t, ok)
	assert.Equal(t, "apk", m.Name)
}

func TestLookupFallsBackThroughChain(t *testing.T) {
	// DistroFedora has no direct catalog entry; Chain() falls through
	// Linux(Unknown) -> Unix -> Unknown, none of which match either, so
	// Lookup should report not-found rather than panicking or mismatching.
	_, ok := Lookup(osclass.Linux(osclass.DistroFedora))
	assert.False(t, ok)
}

func TestArgTemplateAppendsConfirmArgsOnlyWhenRequested(t *testing.T) {
	withConfirm := apt.Install.Args(true, []string{"curl"})
	assert.Equal(t, []string{"install", "-y", "curl"}, withConfirm)

	withoutConfirm := apt.Install.Args(false, []string{"curl"})
	assert.Equal(t, []string{"install", "curl"}, withoutConfirm)
}

func TestWingetLookup(t *testing.T) {
	m, ok := Lookup(osclass.Windows())
	assert.True(t, ok)
	assert.Equal(t, "winget", m.Name)
}
