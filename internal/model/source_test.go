package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuccessRate(t *testing.T) {
	s := SourceReliability{TotalAttempts: 8, SuccessfulAttempts: 6}
	assert.InDelta(t, 0.75, s.SuccessRate(), 1e-9)

	empty := SourceReliability{}
	assert.Equal(t, 0.0, empty.SuccessRate())
}

func TestCloneIsDeep(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	src := SourceReliability{
		Domain:      "example.com",
		QueryTypes:  map[string]float64{"general": 0.4},
		LastSuccess: &ts,
		Notes:       []string{"seed"},
	}

	clone := src.Clone()
	clone.QueryTypes["general"] = 0.9
	clone.Notes[0] = "changed"
	*clone.LastSuccess = clone.LastSuccess.Add(time.Hour)

	assert.InDelta(t, 0.4, src.QueryTypes["general"], 1e-9)
	assert.Equal(t, "seed", src.Notes[0])
	assert.Equal(t, ts, *src.LastSuccess)
}
