// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"net/url"
	"strings"
	"sync"
)

// Session holds the hard stops for one recursive resolution: a total
// request budget and the set of URLs already visited. Both are shared by
// every level of the recursion.
type Session struct {
	maxRequests int

	mu      sync.Mutex
	used    int
	visited map[string]bool
}

// NewSession returns a session allowing maxRequests fetches.
func NewSession(maxRequests int) *Session {
	return &Session{maxRequests: maxRequests, visited: make(map[string]bool)}
}

// Visit marks rawURL visited and reports whether it was new.
func (s *Session) Visit(rawURL string) bool {
	key := NormalizeURL(rawURL)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

// Visited reports whether rawURL was already visited.
func (s *Session) Visited(rawURL string) bool {
	key := NormalizeURL(rawURL)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited[key]
}

// Spend consumes one request from the budget. It returns false, consuming
// nothing, once the budget is exhausted.
func (s *Session) Spend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used >= s.maxRequests {
		return false
	}
	s.used++
	return true
}

// Exhausted reports whether no requests remain.
func (s *Session) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used >= s.maxRequests
}

// Used returns the number of requests spent.
func (s *Session) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// NormalizeURL strips the query string and fragment, lowercases scheme and
// host, and drops a trailing slash so trivially different links compare
// equal. Unparseable input is returned trimmed.
func NormalizeURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}
	return u.String()
}

// Host returns the lowercased host of rawURL, or "" when it has none.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
