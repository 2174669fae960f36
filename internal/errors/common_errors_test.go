package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByType(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "store unavailable matches sentinel",
			err:    NewStoreUnavailableError("find", context.DeadlineExceeded),
			target: ErrStoreUnavailable,
			want:   true,
		},
		{
			name:   "wrapped run in progress matches sentinel",
			err:    fmt.Errorf("launch: %w", NewRunInProgressError(42)),
			target: ErrRunAlreadyInProgress,
			want:   true,
		},
		{
			name:   "different type does not match",
			err:    NewMalformedRecordError("a.csv", 3, "price", "not a number", nil),
			target: ErrStoreUnavailable,
			want:   false,
		},
		{
			name:   "plain error does not match",
			err:    errors.New("boom"),
			target: ErrNoSuchRun,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestAppError_UnwrapsCause(t *testing.T) {
	err := NewStoreUnavailableError("upsert", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "upsert", err.Context["operation"])
	assert.Contains(t, err.Error(), "STORE_UNAVAILABLE")
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrTypeMalformedRecord, TypeOf(fmt.Errorf("chunk 2: %w",
		NewMalformedRecordError("a.csv", 12, "price", "invalid float", nil))))
	assert.Equal(t, ErrTypeInternal, TypeOf(errors.New("unknown")))
	assert.True(t, IsType(NewAppValidationError("bad"), ErrTypeValidation))
	assert.False(t, IsType(nil, ErrTypeValidation))
}

func TestNewMalformedRecordError(t *testing.T) {
	err := NewMalformedRecordError("BTC_values.csv", 7, "timestamp", "not an epoch millisecond value", errors.New("parse"))

	assert.Equal(t, ErrTypeMalformedRecord, err.Type)
	assert.Equal(t, "BTC_values.csv", err.Context["file"])
	assert.Equal(t, 7, err.Context["line"])
	assert.Equal(t, "timestamp", err.Context["column"])
	assert.Contains(t, err.Message, "BTC_values.csv:7")
}
