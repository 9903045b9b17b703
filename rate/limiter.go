package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key. Buckets idle for longer than
// the expiry are evicted by a janitor goroutine that runs until Stop.
type Limiter struct {
	burst   int
	limit   rate.Limit
	expiry  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*clientLimiter
	stop    chan struct{}
	once    sync.Once
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLimiter allows burst requests at once and then one every interval.
func NewLimiter(burst int, interval time.Duration, expiry time.Duration) *Limiter {
	l := &Limiter{
		burst:   burst,
		limit:   rate.Every(interval),
		expiry:  expiry,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
	}
	go l.janitor(time.Minute)
	return l
}

func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[id]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[id] = cl
	}
	cl.lastAccess = l.now()
	return cl.limiter.Allow()
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.evict()
		}
	}
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, v := range l.clients {
		if l.now().Sub(v.lastAccess) > l.expiry {
			delete(l.clients, id)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
