package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limit is a fixed-window request quota for one route group.
// Name namespaces the counters so groups sharing a store never share quota.
type Limit struct {
	Name     string
	Requests int
	Window   time.Duration
}

// Validate reports whether the limit can be enforced.
func (l Limit) Validate() error {
	switch {
	case l.Name == "":
		return fmt.Errorf("limit name is required")
	case l.Requests <= 0:
		return fmt.Errorf("limit %s: requests must be > 0 (got %d)", l.Name, l.Requests)
	case l.Window <= 0:
		return fmt.Errorf("limit %s: window must be > 0 (got %s)", l.Name, l.Window)
	}
	return nil
}

// Route group names.
const (
	LimitSearch = "search"
	LimitAdmin  = "admin"
)

// SearchLimit is the per-client quota for POST /search.
func SearchLimit(perMinute int) Limit {
	return Limit{Name: LimitSearch, Requests: perMinute, Window: time.Minute}
}

// AdminLimit is the per-operator quota for admin routes (10 per minute).
func AdminLimit() Limit {
	return Limit{Name: LimitAdmin, Requests: 10, Window: time.Minute}
}

// Decision is the outcome of taking one request from a quota.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetIn is the time until the current window ends.
	ResetIn time.Duration
}

// LimitStore keeps quota counters. Take counts one request for key.
type LimitStore interface {
	Take(ctx context.Context, key string, limit Limit) Decision
}

type window struct {
	count int
	ends  time.Time
}

// MemoryStore is a LimitStore local to one process.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window), now: time.Now}
}

// Take implements LimitStore.
func (s *MemoryStore) Take(_ context.Context, key string, limit Limit) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(limit.Window)}
		s.windows[key] = w
	}

	resetIn := w.ends.Sub(now)
	if w.count >= limit.Requests {
		return Decision{ResetIn: resetIn}
	}
	w.count++
	return Decision{Allowed: true, Remaining: limit.Requests - w.count, ResetIn: resetIn}
}

// Sweep drops windows that have ended and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.ends) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// KeyFunc identifies the client a request is counted against.
// Keys are prefixed with their kind ("ip:" or "subject:").
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by client address. With trustProxy the first
// X-Forwarded-For entry (or X-Real-IP) is used; only enable it behind a proxy
// that overwrites those headers, otherwise clients can pick their own key.
func ClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return "ip:" + ip
				}
			}
			if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
				return "ip:" + xri
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr
		}
		return "ip:" + host
	}
}

// SubjectOrIP keys authenticated requests by token subject and falls back
// to ClientIP. It must run inside RequireAdmin to see the subject.
func SubjectOrIP(trustProxy bool) KeyFunc {
	byIP := ClientIP(trustProxy)
	return func(r *http.Request) string {
		if sub := GetSubject(r.Context()); sub != "" {
			return "subject:" + sub
		}
		return byIP(r)
	}
}

func keyKind(key string) string {
	kind, _, found := strings.Cut(key, ":")
	if !found {
		return "unknown"
	}
	return kind
}

// RateLimit enforces limit per client key. Responses carry RateLimit-Limit,
// RateLimit-Remaining and RateLimit-Reset (seconds); blocked requests get 429
// with Retry-After and the standard error body. metrics may be nil.
func RateLimit(store LimitStore, limit Limit, key KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	quota := strconv.Itoa(limit.Requests)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := key(r)
			kind := keyKind(client)
			if metrics != nil {
				metrics.IncRateLimitRequests(limit.Name, kind)
			}

			d := store.Take(r.Context(), limit.Name+"|"+client, limit)
			reset := strconv.Itoa(ceilSeconds(d.ResetIn))
			w.Header().Set("RateLimit-Limit", quota)
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("RateLimit-Reset", reset)

			if !d.Allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(limit.Name, kind)
				}
				w.Header().Set("Retry-After", reset)
				writeError(w, r.Context(), http.StatusTooManyRequests, "rate_limited", "Too many requests, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ceilSeconds rounds d up to whole seconds, at least 1.
func ceilSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// writeError writes the API's JSON error envelope from inside middleware,
// which cannot depend on the api package.
func writeError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(ctx, code))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
