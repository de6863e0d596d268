package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("no such table: events")))
	assert.False(t, IsRetryable(ErrWrite))

	assert.True(t, IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsRetryable(errors.New("database table is locked")))
	assert.True(t, IsRetryable(fmt.Errorf("%w: database is locked", ErrWrite)))
}

func TestErrorCategories_AreDistinguishable(t *testing.T) {
	wrapped := fmt.Errorf("%w: %v", ErrBatchWrite, errors.New("event 7: invalid severity"))

	assert.ErrorIs(t, wrapped, ErrBatchWrite)
	assert.NotErrorIs(t, wrapped, ErrWrite)
	assert.Contains(t, wrapped.Error(), "event 7")
}
