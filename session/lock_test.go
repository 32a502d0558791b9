package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesConcurrentAcquires(t *testing.T) {
	l := newLocalLocker()
	ctx := context.Background()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.lock(ctx, "thread-x")
			require.NoError(t, err)
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			release()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxActive)
}

func TestLocalLockerRespectsContextCancellation(t *testing.T) {
	l := newLocalLocker()
	ctx := context.Background()

	release, err := l.lock(ctx, "thread-y")
	require.NoError(t, err)
	defer release()

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.lock(cctx, "thread-y")
	require.Error(t, err)
}

func TestRedisLockerSerializesAcrossClients(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := newRedisLocker(client, "", 2*time.Second)
	ctx := context.Background()

	release, err := l.lock(ctx, "thread-z")
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.lock(cctx, "thread-z")
	require.Error(t, err, "lock should stay held until release")

	release()

	release2, err := l.lock(context.Background(), "thread-z")
	require.NoError(t, err)
	release2()
}
