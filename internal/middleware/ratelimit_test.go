package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock drives MemoryStore windows without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.now
	return s, clock
}

func TestLimit_Validate(t *testing.T) {
	tests := []struct {
		name    string
		limit   Limit
		wantErr bool
	}{
		{"search", SearchLimit(60), false},
		{"admin", AdminLimit(), false},
		{"no name", Limit{Requests: 1, Window: time.Second}, true},
		{"zero requests", SearchLimit(0), true},
		{"zero window", Limit{Name: "x", Requests: 1}, true},
	}
	for _, tt := range tests {
		if err := tt.limit.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	s, clock := newClockedStore()
	limit := Limit{Name: "t", Requests: 3, Window: time.Minute}
	ctx := context.Background()

	for i, wantRemaining := range []int{2, 1, 0} {
		d := s.Take(ctx, "k", limit)
		if !d.Allowed || d.Remaining != wantRemaining {
			t.Fatalf("request %d: %+v", i+1, d)
		}
	}

	clock.advance(20 * time.Second)
	d := s.Take(ctx, "k", limit)
	if d.Allowed || d.Remaining != 0 || d.ResetIn != 40*time.Second {
		t.Fatalf("over quota: %+v", d)
	}
	if other := s.Take(ctx, "other", limit); !other.Allowed {
		t.Error("separate key shares quota")
	}

	clock.advance(40 * time.Second)
	if d := s.Take(ctx, "k", limit); !d.Allowed || d.Remaining != 2 || d.ResetIn != time.Minute {
		t.Errorf("after window: %+v", d)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()
	s.Take(ctx, "short", Limit{Name: "t", Requests: 1, Window: time.Second})
	s.Take(ctx, "long", Limit{Name: "t", Requests: 1, Window: time.Hour})

	if n := s.Sweep(); n != 0 || s.Len() != 2 {
		t.Fatalf("early sweep removed %d, len %d", n, s.Len())
	}
	clock.advance(2 * time.Second)
	if n := s.Sweep(); n != 1 || s.Len() != 1 {
		t.Errorf("sweep removed %d, len %d", n, s.Len())
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	limit := Limit{Name: "t", Requests: 50, Window: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Take(context.Background(), "k", limit).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("allowed %d, want 50", allowed)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", false, "198.51.100.4:5000", nil, "ip:198.51.100.4"},
		{"ipv6", false, "[2001:db8::1]:443", nil, "ip:2001:db8::1"},
		{"no port", false, "198.51.100.4", nil, "ip:198.51.100.4"},
		{"forwarded ignored", false, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "ip:10.0.0.1"},
		{"forwarded trusted", true, "10.0.0.1:1", map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.2"}, "ip:203.0.113.1"},
		{"real ip trusted", true, "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.2"}, "ip:203.0.113.2"},
		{"trusted without headers", true, "10.0.0.1:1", nil, "ip:10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/search", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(tt.trust)(req); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectOrIP(t *testing.T) {
	key := SubjectOrIP(false)
	req := httptest.NewRequest(http.MethodPost, "/admin/personas/reload", nil)
	req.RemoteAddr = "198.51.100.4:5000"

	if got := key(req); got != "ip:198.51.100.4" {
		t.Errorf("anonymous key = %q", got)
	}
	req = req.WithContext(SetSubject(req.Context(), "ops"))
	if got := key(req); got != "subject:ops" {
		t.Errorf("subject key = %q", got)
	}
	if keyKind("subject:ops") != "subject" || keyKind("bare") != "unknown" {
		t.Error("keyKind mismatch")
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newClockedStore()
	m := NewMetrics()
	limit := Limit{Name: LimitSearch, Requests: 2, Window: 90 * time.Second}
	h := RateLimit(s, limit, ClientIP(false), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/search", nil)
		req.RemoteAddr = "198.51.100.4:5000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for _, wantRemaining := range []string{"1", "0"} {
		rr := send()
		if rr.Code != http.StatusOK || rr.Header().Get("RateLimit-Remaining") != wantRemaining {
			t.Fatalf("got %d remaining %q", rr.Code, rr.Header().Get("RateLimit-Remaining"))
		}
		if rr.Header().Get("RateLimit-Limit") != "2" || rr.Header().Get("RateLimit-Reset") != "90" {
			t.Errorf("headers %v", rr.Header())
		}
	}

	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "90" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if body := rr.Body.String(); body != `{"error":{"code":"rate_limited","message":"Too many requests, retry later"}}`+"\n" {
		t.Errorf("body = %s", body)
	}

	if got := counterValue(t, m.limitChecks.WithLabelValues(LimitSearch, "ip")); got != 3 {
		t.Errorf("checks = %v", got)
	}
	if got := counterValue(t, m.limitBlocked.WithLabelValues(LimitSearch, "ip")); got != 1 {
		t.Errorf("blocked = %v", got)
	}
}

func TestRateLimit_GroupsDoNotShareQuota(t *testing.T) {
	s := NewMemoryStore()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	search := RateLimit(s, Limit{Name: LimitSearch, Requests: 1, Window: time.Minute}, ClientIP(false), nil)(next)
	admin := RateLimit(s, Limit{Name: LimitAdmin, Requests: 1, Window: time.Minute}, ClientIP(false), nil)(next)

	for _, h := range []http.Handler{search, admin} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("first request in group got %d", rr.Code)
		}
	}
}

func TestCeilSeconds(t *testing.T) {
	tests := map[time.Duration]int{
		0:                       1,
		time.Millisecond:        1,
		time.Second:             1,
		1001 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for d, want := range tests {
		if got := ceilSeconds(d); got != want {
			t.Errorf("ceilSeconds(%s) = %d, want %d", d, got, want)
		}
	}
}
