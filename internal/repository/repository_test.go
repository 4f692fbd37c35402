package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"leeksaver/internal/models"
)

// narrowModel and wideModel stand in for the store's thinnest and widest
// tables, so boundChunkSize's per-T clamp can be exercised without a live
// *gorm.DB.
type narrowModel struct {
	Code string
	When time.Time
}

func TestBoundChunkSize_NarrowModelKeepsRequested(t *testing.T) {
	got := boundChunkSize[narrowModel](3000)
	assert.Equal(t, 3000, got)
}

func TestBoundChunkSize_TechIndicatorClampsBelowRequested(t *testing.T) {
	// models.TechIndicator has 22 columns; 3000*22 = 66,000 blows past the
	// 32,767 bind-param ceiling, so the request must be clamped down.
	got := boundChunkSize[models.TechIndicator](3000)

	assert.Less(t, got, 3000)
	assert.LessOrEqual(t, got*22, maxBindParams)
}

func TestBoundChunkSize_ZeroOrNegativeRequestUsesCeiling(t *testing.T) {
	got := boundChunkSize[models.DailyBar](0)
	assert.Greater(t, got, 0)
	assert.LessOrEqual(t, got*13, maxBindParams)

	got = boundChunkSize[models.DailyBar](-1)
	assert.Greater(t, got, 0)
}

func TestBoundChunkSize_RequestAboveCeilingIsClamped(t *testing.T) {
	got := boundChunkSize[models.TechIndicator](100000)
	assert.LessOrEqual(t, got*22, maxBindParams)
}

func TestChunkError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("constraint violation")
	err := &ChunkError{FailedChunkIndex: 2, Err: inner}

	assert.Contains(t, err.Error(), "chunk 2")
	assert.ErrorIs(t, err, inner)
}
