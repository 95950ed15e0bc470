package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/homesentry/frigate-bridge/internal/vision"
)

func TestMediaForBands(t *testing.T) {
	low := MediaFor(vision.RiskLow)
	assert.True(t, low.Snapshot)
	assert.False(t, low.Clip)
	assert.False(t, low.Monitoring)

	medium := MediaFor(vision.RiskMedium)
	assert.True(t, medium.Clip)
	assert.Equal(t, 15, medium.ClipSeconds)
	assert.False(t, medium.Monitoring)

	high := MediaFor(vision.RiskHigh)
	assert.Equal(t, 30, high.ClipSeconds)
	assert.True(t, high.Monitoring)

	critical := MediaFor(vision.RiskCritical)
	assert.Equal(t, 60, critical.ClipSeconds)
	assert.True(t, critical.Monitoring)
}
