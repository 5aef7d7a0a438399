package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDigestIgnoresOwner(t *testing.T) {
	a := NewStrategy("alice", "alice", LanguagePython, "print('C')")
	b := NewStrategy("bob", "bob", LanguagePython, "print('C')")
	c := NewStrategy("carol", "carol", LanguageC, "print('C')")

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
	assert.Len(t, a.Digest, 64)
}

func TestComputeDigestFieldBoundaries(t *testing.T) {
	assert.NotEqual(t,
		ComputeDigest("c", []byte("pp")),
		ComputeDigest("cpp", []byte("")),
	)
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{"C": LanguageC, "c++": LanguageCPP, "py": LanguagePython} {
		got, err := ParseLanguage(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLanguage("cobol")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestSubmissionSet(t *testing.T) {
	set := NewSubmissionSet(RoundNoise)
	require.NoError(t, set.Add(NewStrategy("zed", "z", LanguageC, "a")))
	require.NoError(t, set.Add(NewStrategy("amy", "a", LanguageC, "b")))

	assert.ErrorIs(t, set.Add(NewStrategy("amy", "a", LanguageC, "c")), ErrDuplicateID)
	assert.Error(t, set.Add(NewStrategy("", "x", LanguageC, "c")))
	assert.Error(t, set.Add(NewStrategy("a:b", "x", LanguageC, "c")))

	assert.Equal(t, []StrategyID{"amy", "zed"}, set.IDs())
	assert.False(t, set.Frozen())

	set.Freeze()
	assert.True(t, set.Frozen())
	assert.ErrorIs(t, set.Add(NewStrategy("new", "n", LanguageC, "d")), ErrSubmissionFrozen)
	assert.Equal(t, 2, set.Len())
}
