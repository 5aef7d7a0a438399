package game

import (
	"bytes"
	"fmt"
	"strings"
)

// Block is one prior turn of round-3 history from a single player's side.
type Block struct {
	YourMove     Move
	OpponentMove Move
	YourHint     Hint
	OpponentHint Hint
}

// NormalizeOutput converts CRLF to LF and trims surrounding ASCII whitespace.
func NormalizeOutput(raw []byte) []byte {
	out := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	return bytes.TrimSpace(out)
}

// ParseMoveOutput parses a round 1 or round 2 response: exactly one symbol.
func ParseMoveOutput(raw []byte) (Move, error) {
	out := NormalizeOutput(raw)
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: want 1 symbol, got %d bytes", ErrMalformedOutput, len(out))
	}
	m := Move(out[0])
	if !m.Valid() {
		return 0, fmt.Errorf("%w: symbol %q", ErrMalformedOutput, out[0])
	}
	return m, nil
}

// ParseMoveHintOutput parses a round 3 response: a move then a hint.
func ParseMoveHintOutput(raw []byte) (Move, Hint, error) {
	out := NormalizeOutput(raw)
	if len(out) != 2 {
		return 0, 0, fmt.Errorf("%w: want 2 symbols, got %d bytes", ErrMalformedOutput, len(out))
	}
	m, h := Move(out[0]), Hint(out[1])
	if !m.Valid() || !h.Valid() {
		return 0, 0, fmt.Errorf("%w: symbols %q", ErrMalformedOutput, out)
	}
	return m, h, nil
}

// EncodeRound2Input returns the argument passed to a round-2 strategy.
func EncodeRound2Input(s Signal) (string, error) {
	if !s.Valid() {
		return "", fmt.Errorf("invalid signal %q", byte(s))
	}
	return s.String(), nil
}

// EncodeRound3History renders history as repeated 4-symbol blocks. An empty
// history encodes as the empty string.
func EncodeRound3History(history []Block) string {
	var b strings.Builder
	b.Grow(4 * len(history))
	for _, blk := range history {
		b.WriteByte(byte(blk.YourMove))
		b.WriteByte(byte(blk.OpponentMove))
		b.WriteByte(byte(blk.YourHint))
		b.WriteByte(byte(blk.OpponentHint))
	}
	return b.String()
}

// DecodeRound3History is the inverse of EncodeRound3History.
func DecodeRound3History(s string) ([]Block, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("history length %d is not a multiple of 4", len(s))
	}
	out := make([]Block, 0, len(s)/4)
	for i := 0; i < len(s); i += 4 {
		blk := Block{Move(s[i]), Move(s[i+1]), Hint(s[i+2]), Hint(s[i+3])}
		if !blk.YourMove.Valid() || !blk.OpponentMove.Valid() || !blk.YourHint.Valid() || !blk.OpponentHint.Valid() {
			return nil, fmt.Errorf("invalid symbol in history block %d: %q", i/4, s[i:i+4])
		}
		out = append(out, blk)
	}
	return out, nil
}
