package httpclient

import (
	"net/url"
	"sync"
)

// perHostLimit caps concurrent requests per upstream host, process
// wide. Many installs commonly point at the same panel; a handful of
// requests in flight keeps one slow provider from pinning every
// refresh goroutine at once.
const perHostLimit = 4

type hostLimiter struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	size  int
}

var hostLimits = &hostLimiter{
	slots: make(map[string]chan struct{}),
	size:  perHostLimit,
}

// AcquireHost blocks until the host of rawURL has a free request slot
// and returns the release func:
//
//	release := httpclient.AcquireHost(url)
//	defer release()
func AcquireHost(rawURL string) func() {
	slot := hostLimits.slotFor(rawURL)
	slot <- struct{}{}
	return func() { <-slot }
}

func (l *hostLimiter) slotFor(rawURL string) chan struct{} {
	// Slots are keyed by scheme+host; path and query never matter.
	// Unparseable input shares a slot set under its raw string.
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		key = u.Scheme + "://" + u.Host
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, l.size)
		l.slots[key] = s
	}
	return s
}
