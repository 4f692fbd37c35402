package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndIs(t *testing.T) {
	base := errors.New("connection refused")
	err := New(UpstreamUnavailable, "upstream.DailyBars", base)

	assert.True(t, Is(err, UpstreamUnavailable))
	assert.False(t, Is(err, RateLimited))
	assert.Equal(t, UpstreamUnavailable, KindOf(err))
}

func TestKindOf_UnclassifiedError(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("plain error")))
}

func TestError_Unwrap(t *testing.T) {
	base := errors.New("timeout")
	err := New(DeadlineExceeded, "ratelimit.Do", base)

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "ratelimit.Do")
	assert.Contains(t, err.Error(), "DeadlineExceeded")
}

func TestError_NilWrapped(t *testing.T) {
	err := New(SchemaDrift, "frame.Require", nil)
	assert.Equal(t, "frame.Require: SchemaDrift", err.Error())
}

func TestRetryable(t *testing.T) {
	cases := map[Kind]bool{
		RateLimited:         true,
		UpstreamUnavailable: true,
		DeadlineExceeded:    true,
		SchemaDrift:         false,
		ValidationRejected:  false,
		WriteConflict:       false,
		Cancelled:           false,
		ConfigError:         false,
		Unknown:             false,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Retryable(kind), fmt.Sprintf("kind %s", kind))
	}
}

func TestWrappedThroughFmt(t *testing.T) {
	inner := New(ValidationRejected, "transform.CleanOHLC", errors.New("bad row"))
	outer := fmt.Errorf("shard failed: %w", inner)

	assert.True(t, Is(outer, ValidationRejected))
	assert.Equal(t, ValidationRejected, KindOf(outer))
}
