package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"xpo/geom"
	"xpo/host"
)

// rectFetcher is fallback source of window rectangles. Concurrent requests
// for the same node share a single bridge call, results are cached until
// node gets synchronous layout.
type rectFetcher struct {
	q     host.RectQuerier
	group singleflight.Group

	mu    sync.Mutex
	cache map[host.NodeID]geom.Rect
	gen   map[host.NodeID]uint64
	// bumped when records are forgotten, their generations restart from zero
	epoch uint64
}

func newRectFetcher(q host.RectQuerier) *rectFetcher {
	return &rectFetcher{
		q:     q,
		cache: make(map[host.NodeID]geom.Rect),
		gen:   make(map[host.NodeID]uint64),
	}
}

func (f *rectFetcher) get(ctx context.Context, n host.Node) (geom.Rect, error) {
	id := n.ID()

	f.mu.Lock()
	if r, ok := f.cache[id]; ok {
		f.mu.Unlock()
		return r, nil
	}
	gen, epoch := f.gen[id], f.epoch
	f.mu.Unlock()

	ch := f.group.DoChan(id.String(), func() (any, error) {
		f.mu.Lock()
		r, ok := f.cache[id]
		f.mu.Unlock()
		if ok {
			// previous flight completed after our cache check
			return r, nil
		}
		// shared call must not die with the first caller
		r, err := f.q.BoundingClientRect(context.WithoutCancel(ctx), n)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		if f.gen[id] == gen && f.epoch == epoch {
			f.cache[id] = r
		}
		f.mu.Unlock()
		return r, nil
	})

	select {
	case <-ctx.Done():
		return geom.Rect{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return geom.Rect{}, fmt.Errorf("bounding rectangle of node %s: %w", id, res.Err)
		}
		return res.Val.(geom.Rect), nil
	}
}

// invalidate drops cached value, results of calls still in flight are not
// cached either.
func (f *rectFetcher) invalidate(id host.NodeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, id)
	f.gen[id]++
}

// forget drops everything known about collected record.
func (f *rectFetcher) forget(id host.NodeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, id)
	delete(f.gen, id)
	f.epoch++
}

func (f *rectFetcher) cached(id host.NodeID) (geom.Rect, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.cache[id]
	return r, ok
}

// RectInWindow returns node rectangle in window coordinates. Synchronous
// layout is used when available, otherwise host bridge is asked.
func (e *Engine) RectInWindow(ctx context.Context, n host.Node) (geom.Rect, error) {
	e.mu.Lock()
	el := e.reg.get(n.ID())
	if el == nil {
		e.mu.Unlock()
		return geom.Rect{}, ErrNotTracked
	}
	if el.rectInWindow != nil {
		r := *el.rectInWindow
		e.mu.Unlock()
		return r, nil
	}
	fetch := e.fetch
	e.mu.Unlock()

	if fetch == nil {
		return geom.Rect{}, ErrNoRectQuerier
	}
	r, err := fetch.get(ctx, n)
	if err != nil {
		return geom.Rect{}, err
	}

	// tree may have changed while waiting
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid(el) {
		return geom.Rect{}, ErrRemoved
	}
	return r, nil
}
