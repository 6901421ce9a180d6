// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type (
	// keyedMutex hands out one mutex per key and forgets keys nobody holds.
	keyedMutex struct {
		mu    sync.Mutex
		locks map[string]*refMutex
	}

	refMutex struct {
		sync.Mutex
		refs int
	}

	// sharedFlight runs one call per key for every concurrent caller. The
	// call runs under its own context, canceled only once every caller
	// waiting on it has gone.
	sharedFlight struct {
		group singleflight.Group
		mu    sync.Mutex
		calls map[string]*flightCall
	}

	flightCall struct {
		ctx     context.Context
		cancel  context.CancelFunc
		waiters int
	}
)

// lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// do runs fn once for all callers of key that overlap. A caller whose ctx
// ends stops waiting with ctx.Err(); the last caller to leave cancels fn's
// context and waits for fn to return, so nothing outlives every caller.
func (f *sharedFlight) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, err error, shared bool) {
	call := f.join(ctx, key)
	ch := f.group.DoChan(key, func() (any, error) {
		return fn(call.ctx)
	})

	select {
	case res := <-ch:
		f.leave(key, call)
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		if !f.leave(key, call) {
			return nil, ctx.Err(), true
		}
		res := <-ch
		return res.Val, res.Err, res.Shared
	}
}

func (f *sharedFlight) join(ctx context.Context, key string) *flightCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]*flightCall)
	}
	call, ok := f.calls[key]
	if !ok {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &flightCall{ctx: callCtx, cancel: cancel}
		f.calls[key] = call
	}
	call.waiters++
	return call
}

// leave drops one waiter and reports whether it was the last one.
func (f *sharedFlight) leave(key string, call *flightCall) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return false
	}
	call.cancel()
	if f.calls[key] == call {
		delete(f.calls, key)
	}
	// A later caller must start afresh rather than join a canceled call.
	f.group.Forget(key)
	return true
}

// waiting returns the number of callers waiting on key.
func (f *sharedFlight) waiting(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if call, ok := f.calls[key]; ok {
		return call.waiters
	}
	return 0
}
