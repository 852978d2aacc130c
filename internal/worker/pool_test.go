package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_ProcessesJobs(t *testing.T) {
	p := NewPool(func(_ context.Context, job Job) string {
		return job.SessionID + ":" + job.Prompt
	}, 2, 4, zap.NewNop())
	p.Start()
	defer p.Stop()

	res, err := p.Submit(context.Background(), Job{SessionID: "s1", Seq: 1, Prompt: "rain"})
	require.NoError(t, err)
	assert.Equal(t, "s1:rain", <-res)
}

func TestPool_JobOutlivesSubmitter(t *testing.T) {
	release := make(chan struct{})
	var done atomic.Bool
	p := NewPool(func(context.Context, Job) bool {
		<-release
		done.Store(true)
		return true
	}, 1, 1, zap.NewNop())
	p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	res, err := p.Submit(ctx, Job{SessionID: "s1"})
	require.NoError(t, err)
	cancel()

	close(release)
	select {
	case ok := <-res:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("job did not complete")
	}
	p.Stop()
	assert.True(t, done.Load())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(func(context.Context, Job) int { return 0 }, 1, 0, zap.NewNop())
	p.Start()
	p.Stop()

	_, err := p.Submit(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPool_SubmitHonorsContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(func(context.Context, Job) int { <-block; return 0 }, 1, 0, zap.NewNop())
	p.Start()
	defer func() {
		close(block)
		p.Stop()
	}()

	_, err := p.Submit(context.Background(), Job{Seq: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Submit(ctx, Job{Seq: 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_StopAnswersQueuedJobs(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(func(_ context.Context, job Job) string {
		<-block
		return "done"
	}, 1, 2, zap.NewNop())
	p.OnDrop(func(job Job, err error) string {
		return "dropped:" + job.SessionID + ":" + err.Error()
	})
	p.Start()

	running, err := p.Submit(context.Background(), Job{SessionID: "s1"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, time.Millisecond)

	queued, err := p.Submit(context.Background(), Job{SessionID: "s2"})
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	close(block)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}
	assert.Equal(t, "done", <-running)
	got := <-queued
	assert.Contains(t, []string{"done", "dropped:s2:" + ErrStopped.Error()}, got)
}

func TestPool_StopDrainsWithoutWorkers(t *testing.T) {
	p := NewPool(func(context.Context, Job) string { return "ran" }, 1, 2, zap.NewNop())
	p.OnDrop(func(job Job, err error) string { return "dropped:" + job.SessionID })

	res, err := p.Submit(context.Background(), Job{SessionID: "s1"})
	require.NoError(t, err)
	p.Stop()

	select {
	case got := <-res:
		assert.Equal(t, "dropped:s1", got)
	case <-time.After(time.Second):
		t.Fatal("queued job was never answered")
	}
}
