package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestModeControllerExclusiveWaitsForShared(t *testing.T) {
	c := NewModeController()
	c.EnterMode(Shared)

	exclusiveEntered := make(chan struct{})
	go func() {
		c.EnterMode(Exclusive)
		close(exclusiveEntered)
	}()

	select {
	case <-exclusiveEntered:
		t.Fatal("exclusive entered while shared still held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.FinishMode(Shared))
	select {
	case <-exclusiveEntered:
	case <-time.After(time.Second):
		t.Fatal("exclusive never entered after shared released")
	}
	require.NoError(t, c.FinishMode(Exclusive))
}

func TestModeControllerFinishWithoutEnterErrors(t *testing.T) {
	c := NewModeController()
	require.Error(t, c.FinishMode(Shared))
}

func TestControllerWriteLockBlocksReaders(t *testing.T) {
	c := NewController()
	h1, err := c.LockTables([]TableID{1}, nil)
	require.NoError(t, err)

	granted := make(chan struct{})
	go func() {
		h2, err := c.LockTables(nil, []TableID{1})
		require.NoError(t, err)
		close(granted)
		h2.UnlockAll()
	}()

	select {
	case <-granted:
		t.Fatal("read lock granted while write lock held")
	case <-time.After(50 * time.Millisecond):
	}

	h1.UnlockAll()
	select {
	case <-granted:
	case <-time.After(time.Second):
		t.Fatal("read lock never granted after write lock released")
	}
}

func TestControllerReadersDoNotBlockEachOther(t *testing.T) {
	c := NewController()
	h1, err := c.LockTables(nil, []TableID{1})
	require.NoError(t, err)
	h2, err := c.LockTables(nil, []TableID{1})
	require.NoError(t, err)
	h1.UnlockAll()
	h2.UnlockAll()
}

func TestWorkerPoolRejectsDoubleSubmit(t *testing.T) {
	p := NewWorkerPool(2)
	release := make(chan struct{})
	started := make(chan struct{})
	var ran atomic.Int32

	err := p.Execute("u", "conn-1", func(ctx context.Context) error {
		close(started)
		<-release
		ran.Add(1)
		return nil
	})
	require.NoError(t, err)
	<-started

	err = p.Execute("u", "conn-1", func(ctx context.Context) error { return nil })
	require.Error(t, err)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	require.Equal(t, int32(1), ran.Load())
}
