package walk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "crawl", PhaseCrawl.String())
	assert.Equal(t, "analyze", PhaseAnalyze.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("crawl")
	require.NoError(t, err)
	assert.Equal(t, PhaseCrawl, p)

	p, err = ParsePhase("analyze")
	require.NoError(t, err)
	assert.Equal(t, PhaseAnalyze, p)

	_, err = ParsePhase("Crawl")
	assert.Error(t, err)
}

func TestParseReason(t *testing.T) {
	r, err := ParseReason("BOUND_EXCEEDED")
	require.NoError(t, err)
	assert.Equal(t, ReasonBoundExceeded, r)

	_, err = ParseReason("TIMEOUT")
	assert.Error(t, err)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "Crawl(1,#0)", Event{Phase: PhaseCrawl, Position: 1, Seq: 0}.String())
	assert.Equal(t, "Analyze(3,#5)", Event{Phase: PhaseAnalyze, Position: 3, Seq: 5}.String())
}

func TestResult_JSON(t *testing.T) {
	result := Begin(Config{StartPosition: 1, MaxPosition: 1})

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"config": {"start": 1, "max": 1},
		"events": [
			{"phase": "crawl", "position": 1, "seq": 0},
			{"phase": "analyze", "position": 1, "seq": 1}
		],
		"reason": "BOUND_EXCEEDED"
	}`, string(data))

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result, decoded)
}

func TestResult_Canonical(t *testing.T) {
	result := Begin(Config{StartPosition: 5, MaxPosition: 2})

	canonical := result.Canonical()
	assert.Equal(t, "CONFIGURATION_REJECTED", canonical["reason"])
	assert.Equal(t, "BOUND_BEFORE_START", canonical["rejection"])
	assert.Equal(t, []any{}, canonical["events"])
}

func TestResult_DigestDistinguishesTraces(t *testing.T) {
	a, err := Begin(Config{StartPosition: 1, MaxPosition: 2}).Digest()
	require.NoError(t, err)
	b, err := Begin(Config{StartPosition: 1, MaxPosition: 3}).Digest()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
