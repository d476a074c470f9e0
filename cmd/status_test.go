package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/macromap/econsync/internal/ingest"
)

func TestFormatStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatStatus(&buf, 0, nil, nil, nil)

	out := buf.String()
	assert.Contains(t, out, "Countries registered: 0")
	assert.Contains(t, out, "INDICATOR")
	assert.Contains(t, out, "No ingestion runs recorded")
}

func TestFormatStatus_WithData(t *testing.T) {
	started := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	runs := []ingest.RunEntry{
		{
			JobName:    "ingest.gdp_usd",
			Status:     ingest.StatusSuccess,
			StartedAt:  started,
			FinishedAt: started.Add(42 * time.Second),
			Inserted:   120,
			Updated:    3,
		},
		{
			JobName:      "ingest.inflation_yoy",
			Status:       ingest.StatusPartial,
			StartedAt:    started,
			FinishedAt:   started.Add(10 * time.Second),
			ErrorSummary: strings.Repeat("x", 100),
		},
	}
	counts := map[string]int64{"gdp_usd": 1234567}
	updated := map[string]time.Time{"ingest.gdp_usd": started}

	var buf bytes.Buffer
	formatStatus(&buf, 217, counts, updated, runs)

	out := buf.String()
	assert.Contains(t, out, "Countries registered: 217")
	// Row counts are grouped for readability.
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "2026-08-20 06:00")
	assert.Contains(t, out, "ingest.gdp_usd")
	assert.Contains(t, out, "partial")
	// Long error summaries are truncated for the table.
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 100))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactlyten", truncate("exactlyten", 10))
	assert.Equal(t, "toolon...", truncate("toolongvalue", 9))
}
