package middleware

import (
	"net/http"
	"sync"
	"time"

	"campusbook/pkg/logger"
)

type CallerExtractor func(r *http.Request) string

// CallerRateLimiter throttles per authenticated caller. Requests without
// an identity header pass through; the gateway already throttles
// anonymous traffic.
type CallerRateLimiter struct {
	mu              sync.RWMutex
	requests        map[string][]time.Time
	limit           int
	window          time.Duration
	callerExtractor CallerExtractor
	log             *logger.Logger
	stopCh          chan struct{}
}

func NewCallerRateLimiter(limit int, window time.Duration, extractor CallerExtractor, log *logger.Logger) *CallerRateLimiter {
	limiter := &CallerRateLimiter{
		requests:        make(map[string][]time.Time),
		limit:           limit,
		window:          window,
		callerExtractor: extractor,
		log:             log,
		stopCh:          make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *CallerRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for caller, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, caller)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *CallerRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *CallerRateLimiter) Allow(caller string) bool {
	if caller == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range rl.requests[caller] {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		rl.requests[caller] = validTimestamps
		return false
	}

	rl.requests[caller] = append(validTimestamps, now)
	return true
}

func CallerRateLimit(limiter *CallerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := extractCaller(r, limiter.callerExtractor)

			if caller == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(caller) {
				rejectRateLimited(w, limiter.log, r, caller)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractCaller(r *http.Request, extractor CallerExtractor) string {
	if extractor == nil {
		return r.Header.Get(HeaderUserID)
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, caller string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		if id, ok := rid.(string); ok {
			requestID = id
		}
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"caller", caller,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

func DefaultCallerExtractor(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}
