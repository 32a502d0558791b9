package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitWaitBoundsConcurrency(t *testing.T) {
	p := New(Config{MaxWorkers: 2, QueueSize: 16})
	defer p.Close()

	var active int32
	var maxActive int32
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			_ = p.SubmitWait(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					cur := atomic.LoadInt32(&maxActive)
					if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.LessOrEqual(t, maxActive, int32(2))
}

func TestSubmitWaitPropagatesTaskError(t *testing.T) {
	p := New(Config{MaxWorkers: 1})
	defer p.Close()

	sentinel := errors.New("boom")
	err := p.SubmitWait(context.Background(), func(ctx context.Context) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestSubmitWaitRejectsAfterClose(t *testing.T) {
	p := New(Config{MaxWorkers: 1})
	p.Close()

	err := p.SubmitWait(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubmitWaitRecoversFromPanic(t *testing.T) {
	p := New(Config{MaxWorkers: 1})
	defer p.Close()

	err := p.SubmitWait(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})
	assert.Error(t, err)
}

func TestSubmitWaitRespectsContextCancellation(t *testing.T) {
	p := New(Config{MaxWorkers: 1})
	defer p.Close()

	// occupy the only worker
	release := make(chan struct{})
	go p.SubmitWait(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})
	time.Sleep(5 * time.Millisecond)

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.SubmitWait(cctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
