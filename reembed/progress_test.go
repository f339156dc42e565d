package reembed

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Increment(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	output := buf.String()
	assert.Contains(t, output, "Embedding: 100/100")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "concepts/s")
}

func TestProgressTracker_Finish(t *testing.T) {
	tests := []struct {
		name  string
		total int
		want  string
	}{
		{"partial", 100, "100/100"},
		{"zero total", 0, "0/0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewProgressTracker(&buf, "Embedding", tt.total, 10)
			tracker.Start()
			tracker.Update(tt.total / 2)
			tracker.Finish()
			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "\n")
		})
	}
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)
	tracker.Start()
	tracker.Increment(150)
	assert.Contains(t, buf.String(), "100/100")
	assert.NotContains(t, buf.String(), "150")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)
	tracker.Increment(10)
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 1000, 100)
	tracker.Start()

	tracker.Update(50)
	assert.Empty(t, buf.String(), "under interval")

	tracker.Update(100)
	assert.NotEmpty(t, buf.String(), "at interval")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "under next interval")
}

func TestProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, "Embedding", 10, 0)
	tracker.Start()
	tracker.Update(5)
	tracker.Finish()
}
