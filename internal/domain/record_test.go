package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordLink(t *testing.T) {
	t.Parallel()

	rec := Record{ID: "42", User: UserInfo{Username: "alice"}}
	assert.Equal(t, "https://twitter.com/alice/status/42", rec.Link())

	rec.URL = "https://x.com/alice/status/42"
	assert.Equal(t, "https://x.com/alice/status/42", rec.Link())
}

func TestRiskLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelLow, RiskLevel(0))
	assert.Equal(t, LevelLow, RiskLevel(3.9))
	assert.Equal(t, LevelMedium, RiskLevel(4))
	assert.Equal(t, LevelMedium, RiskLevel(6.5))
	assert.Equal(t, LevelHigh, RiskLevel(7))
	assert.Equal(t, LevelHigh, RiskLevel(10))
}

func TestCountHighRisk(t *testing.T) {
	t.Parallel()

	records := []Record{{RiskScore: 2}, {RiskScore: 8}, {RiskScore: 5}, {RiskScore: 7}}
	assert.Equal(t, 2, CountHighRisk(records))
	assert.Equal(t, 0, CountHighRisk(nil))
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	var fetch *FetchError
	err := error(&PollError{Err: &FetchError{Collection: "system_logs", Err: cause}})

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.As(err, &fetch))
	assert.Equal(t, "system_logs", fetch.Collection)
	assert.ErrorIs(t, &WriteError{Collection: "system_commands", Err: cause}, cause)
}
