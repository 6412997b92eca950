package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memBackend struct {
	mu       sync.Mutex
	files    map[string][]byte
	saveErr  error
	urlErr   error
	saveCall int
}

func newMemBackend() *memBackend {
	return &memBackend{files: make(map[string][]byte)}
}

func (b *memBackend) Kind() string { return "mem" }

func (b *memBackend) Save(_ context.Context, p string, content []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveCall++
	if b.saveErr != nil {
		return "", b.saveErr
	}
	b.files[p] = append([]byte(nil), content...)
	return p, nil
}

func (b *memBackend) Exists(_ context.Context, p string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[p]
	return ok, nil
}

func (b *memBackend) URLFor(_ context.Context, p string) (string, error) {
	if b.urlErr != nil {
		return "", b.urlErr
	}
	return "mem://" + p, nil
}

func (b *memBackend) get(p string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.files[p])
}

var errDiskFull = errors.New("disk full")
