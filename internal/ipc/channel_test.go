package ipc

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair connects a controller-side Channel to a worker-side stream
type pair struct {
	channel  *Channel
	toWorker *io.PipeReader // requests as the worker sees them
	fromWork *io.PipeWriter // replies written by the worker
	worker   *Conn
}

func newPair(t *testing.T) *pair {
	reqR, reqW := io.Pipe()
	repR, repW := io.Pipe()
	ch := NewChannel(repR, reqW, reqW)
	t.Cleanup(func() {
		ch.Close()
		repW.Close()
		reqR.Close()
	})
	return &pair{channel: ch, toWorker: reqR, fromWork: repW, worker: NewConn(reqR, repW)}
}

func (p *pair) readRequest(t *testing.T) Request {
	var req Request
	require.NoError(t, p.worker.Receive(&req))
	return req
}

func TestChannel_IDsStartAtTwoAndIncrease(t *testing.T) {
	p := newPair(t)

	var ids []uint64
	for i := 0; i < 3; i++ {
		go func() { p.channel.Send(func(*Reply, error) {}) }()
		ids = append(ids, p.readRequest(t).ID)
	}

	assert.ElementsMatch(t, []uint64{2, 3, 4}, ids)
	assert.Equal(t, 3, p.channel.Pending())
}

func TestChannel_DispatchExactlyOnce(t *testing.T) {
	p := newPair(t)

	calls := 0
	var got *Reply
	go p.channel.Send(func(r *Reply, err error) {
		require.NoError(t, err)
		calls++
		got = r
	})
	req := p.readRequest(t)

	assert.True(t, p.channel.Dispatch(&Reply{ID: req.ID, Conns: 7}))
	assert.False(t, p.channel.Dispatch(&Reply{ID: req.ID, Conns: 8}), "second reply for the same id is dropped")
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(7), got.Conns)
	assert.Equal(t, 0, p.channel.Pending())
}

func TestChannel_UnknownAndMissingIDsIgnored(t *testing.T) {
	p := newPair(t)

	called := false
	go p.channel.Send(func(*Reply, error) { called = true })
	p.readRequest(t)

	assert.False(t, p.channel.Dispatch(&Reply{ID: 999}))
	assert.False(t, p.channel.Dispatch(&Reply{}))
	assert.False(t, p.channel.Dispatch(nil))
	assert.False(t, called)
	assert.Equal(t, 1, p.channel.Pending())
}

func TestChannel_RequestRoundTrip(t *testing.T) {
	p := newPair(t)
	go p.channel.Serve()

	go func() {
		req := p.readRequest(t)
		p.worker.Send(&Reply{ID: 12345, Conns: 1}) // stale, ignored
		p.worker.Send(&Reply{ID: req.ID, Ticks: []float64{1, 2}, Packets: 9})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := p.channel.Request(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reply.ID)
	assert.Equal(t, []float64{1, 2}, reply.Ticks)
	assert.Equal(t, int64(9), reply.Packets)
}

func TestChannel_RequestTimeoutReleasesID(t *testing.T) {
	p := newPair(t)
	go func() { p.readRequest(t) }() // never answered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.channel.Request(ctx)
	assert.ErrorIs(t, err, ErrNoReply)
	assert.Equal(t, 0, p.channel.Pending())
}

func TestChannel_CloseFailsPending(t *testing.T) {
	p := newPair(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.channel.Send(func(r *Reply, err error) {
				assert.Nil(t, r)
				errs <- err
			})
		}()
		p.readRequest(t)
	}
	wg.Wait()

	require.NoError(t, p.channel.Close())
	assert.ErrorIs(t, <-errs, ErrChannelClosed)
	assert.ErrorIs(t, <-errs, ErrChannelClosed)

	_, err := p.channel.Send(func(*Reply, error) {})
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestChannel_ServeEOFFailsPending(t *testing.T) {
	p := newPair(t)
	served := make(chan error, 1)
	go func() { served <- p.channel.Serve() }()

	failed := make(chan error, 1)
	go p.channel.Send(func(_ *Reply, err error) { failed <- err })
	p.readRequest(t)

	p.fromWork.Close() // worker exits
	assert.NoError(t, <-served)
	assert.ErrorIs(t, <-failed, ErrChannelClosed)
}

func TestResponder_AnswersWithRequestID(t *testing.T) {
	reqR, reqW := io.Pipe()
	repR, repW := io.Pipe()
	ch := NewChannel(repR, reqW, reqW)
	go ch.Serve()

	responder := NewResponder(reqR, repW)
	done := make(chan error, 1)
	go func() {
		done <- responder.Serve(func(id uint64) *Reply {
			return &Reply{Conns: int64(id) * 10}
		})
		repW.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for want := uint64(2); want < 5; want++ {
		reply, err := ch.Request(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, reply.ID)
		assert.Equal(t, int64(want)*10, reply.Conns)
	}

	require.NoError(t, ch.Close())
	assert.NoError(t, <-done)
}
