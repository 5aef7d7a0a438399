package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf).Level(zerolog.InfoLevel))
	for _, ev := range sampleEvents() {
		SafeRecord(sink, ev)
	}

	var lines []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 3, "completed matches are debug only")

	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, string(EventMatchForfeited), lines[0]["message"])
	assert.Equal(t, "c", lines[0]["strategy"])
	assert.Equal(t, "strikes", lines[0]["reason"])

	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, string(EventStrategyExcluded), lines[1]["message"])
	assert.NotContains(t, lines[1], "match_id")

	assert.Equal(t, "info", lines[2]["level"])
	assert.Equal(t, "r1:a:c", lines[2]["match_id"])
	assert.Equal(t, "trace", lines[2]["component"])
}
