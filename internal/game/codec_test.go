package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoveOutput(t *testing.T) {
	valid := map[string]Move{"C": Cooperate, "D\n": Defect, "  C\r\n": Cooperate}
	for in, want := range valid {
		got, err := ParseMoveOutput([]byte(in))
		require.NoError(t, err, "%q", in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "c", "CD", "U", "N", "C D", "\x00"} {
		_, err := ParseMoveOutput([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedOutput, "%q", in)
	}
}

func TestParseMoveHintOutput(t *testing.T) {
	m, h, err := ParseMoveHintOutput([]byte("DC\n"))
	require.NoError(t, err)
	assert.Equal(t, Defect, m)
	assert.Equal(t, Cooperate, h)

	for _, in := range []string{"D", "DCC", "DU", "C C", "dc"} {
		_, _, err := ParseMoveHintOutput([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedOutput, "%q", in)
	}
}

func TestEncodeRound2Input(t *testing.T) {
	for _, s := range []Signal{SignalCooperate, SignalDefect, SignalNoPrior, SignalUnknown} {
		got, err := EncodeRound2Input(s)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	_, err := EncodeRound2Input(Signal('x'))
	assert.Error(t, err)
}

func TestRound3HistoryCodec(t *testing.T) {
	assert.Equal(t, "", EncodeRound3History(nil))

	hist := []Block{
		{Cooperate, Defect, Cooperate, Cooperate},
		{Defect, Defect, Cooperate, Defect},
	}
	enc := EncodeRound3History(hist)
	assert.Equal(t, "CDCCDDCD", enc)

	dec, err := DecodeRound3History(enc)
	require.NoError(t, err)
	assert.Equal(t, hist, dec)

	_, err = DecodeRound3History("CDC")
	assert.Error(t, err)
	_, err = DecodeRound3History("CDCU")
	assert.Error(t, err)
}
