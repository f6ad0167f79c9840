package osclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatibleReflexive(t *testing.T) {
	for _, o := range []Os{Unknown(), Linux(DistroArch), Linux(DistroUnknown), Windows(), MacOS(), Unix()} {
		assert.True(t, o.Compatible(o), "%v not reflexive", o)
	}
}

func TestCompatibleWildcard(t *testing.T) {
	assert.True(t, Unknown().Compatible(Linux(DistroArch)))
	assert.True(t, Linux(DistroArch).Compatible(Unknown()))
}

func TestCompatibleLinuxUnknownMatchesAnyDistro(t *testing.T) {
	assert.True(t, Linux(DistroUnknown).Compatible(Linux(DistroDebian)))
	assert.True(t, Linux(DistroDebian).Compatible(Linux(DistroUnknown)))
	assert.False(t, Linux(DistroDebian).Compatible(Linux(DistroArch)))
}

func TestCompatibleUnixMatchesUnixFamily(t *testing.T) {
	assert.True(t, Unix().Compatible(Linux(DistroUbuntu)))
	assert.True(t, Unix().Compatible(MacOS()))
	assert.True(t, Unix().Compatible(Unix()))
	assert.False(t, Unix().Compatible(Windows()))
}

func TestNextCompatibleChainReachesUnknown(t *testing.T) {
	chain := Linux(DistroManjaro).Chain()
	assert.Equal(t, []Os{Linux(DistroManjaro), Linux(DistroUnknown), Unix(), Unknown()}, chain)

	chain = MacOS().Chain()
	assert.Equal(t, []Os{MacOS(), Unix(), Unknown()}, chain)

	chain = Windows().Chain()
	assert.Equal(t, []Os{Windows(), Unknown()}, chain)

	chain = Unknown().Chain()
	assert.Equal(t, []Os{Unknown()}, chain)
}

func TestChainIsFinite(t *testing.T) {
	for _, o := range []Os{Linux(DistroAlpine), MacOS(), Windows(), Unix(), Unknown()} {
		chain := o.Chain()
		assert.LessOrEqual(t, len(chain), 4)
		assert.Equal(t, FamUnknown, chain[len(chain)-1].Family)
	}
}

func TestParseRoundTripsString(t *testing.T) {
	for _, o := range []Os{
		Linux(DistroAlpine), Linux(DistroUnknown), Windows(), MacOS(), Unix(), Unknown(),
	} {
		assert.Equal(t, o, Parse(o.String()), "round trip for %v", o)
	}
}

func TestParseUnknownStringIsUnknown(t *testing.T) {
	assert.Equal(t, Unknown(), Parse("plan9"))
}
