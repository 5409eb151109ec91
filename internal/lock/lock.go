// Package lock provides the exclusive scopes that serialize work on a single
// booking or flight.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Unlock releases every key taken by one Lock call. Calls after the first
// are no-ops.
type Unlock func()

// Locker acquires exclusive scopes on keys. Keys are always taken in
// ascending order, so two callers asking for overlapping sets never wait on
// each other in a cycle.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}

func BookingKey(bookingID string) string {
	return "booking:" + bookingID
}

// FlightKey zero-pads the id so that lexical key order matches ascending
// flight id order.
func FlightKey(flightID int64) string {
	return fmt.Sprintf("flight:%019d", flightID)
}

// SortedKeys returns the distinct keys in ascending order.
func SortedKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type entry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process Locker backed by one semaphore per key.
// Entries are dropped once no caller holds or waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*entry)}
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	ordered := SortedKeys(keys)
	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := l.acquire(ctx, key); err != nil {
			l.releaseAll(held)
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		held = append(held, key)
	}
	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *LocalLocker) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, e)
		return ctx.Err()
	}
}

func (l *LocalLocker) releaseAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		<-e.sem
		l.drop(keys[i], e)
	}
}

func (l *LocalLocker) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

var _ Locker = (*LocalLocker)(nil)
