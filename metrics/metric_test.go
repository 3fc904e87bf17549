package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeKeepsLaterTimestamp(t *testing.T) {
	earlier := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	merged := Merge(
		[]Metric{{ID: "code-pr-count", Source: SourceGitHub, Value: 10, Timestamp: earlier}},
		[]Metric{{ID: "code-pr-count", Source: SourceGitHub, Value: 12, Timestamp: later}},
	)

	require.Len(t, merged, 1)
	assert.Equal(t, 12.0, merged[0].Value)
	assert.Equal(t, later, merged[0].Timestamp)
}

func TestMergeEqualTimestampsFirstWins(t *testing.T) {
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	merged := Merge(
		[]Metric{{ID: "code-pr-count", Source: SourceGitHub, Value: 10, Timestamp: ts}},
		[]Metric{{ID: "code-pr-count", Source: SourceGitHub, Value: 99, Timestamp: ts}},
	)

	require.Len(t, merged, 1)
	assert.Equal(t, 10.0, merged[0].Value)
}

func TestMergeSameIDAcrossSourcesBothKept(t *testing.T) {
	ts := time.Now()

	merged := Merge(
		[]Metric{{ID: "response-count", Source: SourceSheets, Value: 40, Timestamp: ts}},
		[]Metric{{ID: "response-count", Source: SourceGitHub, Value: 7, Timestamp: ts}},
	)

	assert.Len(t, merged, 2)
}

func TestMergePreservesFirstSeenOrder(t *testing.T) {
	ts := time.Now()

	merged := Merge(
		[]Metric{
			{ID: "a", Source: SourceSheets, Timestamp: ts},
			{ID: "b", Source: SourceSheets, Timestamp: ts},
		},
		[]Metric{
			{ID: "a", Source: SourceSheets, Value: 1, Timestamp: ts.Add(time.Minute)},
			{ID: "c", Source: SourceGitHub, Timestamp: ts},
		},
	)

	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, 1.0, merged[0].Value)
	assert.Equal(t, "b", merged[1].ID)
	assert.Equal(t, "c", merged[2].ID)
}

func TestMergeEmptyInput(t *testing.T) {
	merged := Merge(nil, []Metric{})
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}
