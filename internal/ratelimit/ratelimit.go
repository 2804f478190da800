package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type RateLimit interface {
	Allow(addr string) bool
}

type WindowData struct {
	count       int
	windowStart time.Time
}

type FixedWindowLimitter struct {
	maxRequests int
	window      time.Duration
	requests    map[string]*WindowData
	mutex       sync.Mutex
}

func New(maxRequests int, interval time.Duration) *FixedWindowLimitter {
	return &FixedWindowLimitter{
		maxRequests: maxRequests,
		window:      interval,
		requests:    make(map[string]*WindowData),
	}
}

func (rl *FixedWindowLimitter) Allow(addr string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	wd := rl.requests[addr]

	// no data, or the previous window has elapsed
	if wd == nil || now.Sub(wd.windowStart) > rl.window {
		if rl.maxRequests == 0 {
			return false
		}

		rl.requests[addr] = &WindowData{
			count:       1,
			windowStart: now,
		}
		return true
	}

	if wd.count >= rl.maxRequests {
		return false
	}
	wd.count++

	return true
}

// Prune drops windows that elapsed before the cutoff so the address map
// does not grow unbounded.
func (rl *FixedWindowLimitter) Prune(cutoff time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for addr, wd := range rl.requests {
		if wd.windowStart.Add(rl.window).Before(cutoff) {
			delete(rl.requests, addr)
		}
	}
}

// Middleware rejects requests over the per-address limit with 429.
func Middleware(rl RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !rl.Allow(host) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
