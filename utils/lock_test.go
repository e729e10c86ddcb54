package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerGivesUpWhenContextEnds(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), LockKey("Station", 2))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, LockKey("Station", 2), LockKey("Booking Order", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// the booking order key taken before giving up is free again
	other, err := locker.Lock(context.Background(), LockKey("Booking Order", 1))
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := locker.Lock(context.Background(), LockKey("Station", 2))
	require.NoError(t, err)
	again()
}

func TestLocalLockerSerialisesSharedKeys(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), "b", "a", "a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		next, err := locker.Lock(context.Background(), "a")
		if err == nil {
			next()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder got a key that is still held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("key was not handed over after release")
	}
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedUnique([]string{"c", "a", "b", "a"}))
}
