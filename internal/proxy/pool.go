// Package proxy manages the pool of network egress descriptors used by
// search attempts.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Pool mutation errors.
var (
	ErrBadProxySpec   = errors.New("malformed proxy spec")
	ErrDuplicateProxy = errors.New("proxy already present")
	ErrProxyNotFound  = errors.New("proxy not found")
)

// failureThreshold is how many consecutive failures demote a descriptor.
const failureThreshold = 3

// Descriptor is the externally visible state of one egress point.
type Descriptor struct {
	ID           string `json:"id"`
	Protocol     string `json:"protocol"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"-"`
	Enabled      bool   `json:"enabled"`
	Healthy      bool   `json:"healthy"`
	SuccessCount int64  `json:"success_count"`
	FailureCount int64  `json:"failure_count"`
}

// URL renders the descriptor as a scheme://[user:pass@]host:port proxy URL.
func (d Descriptor) URL() string {
	var b strings.Builder
	b.WriteString(d.Protocol)
	b.WriteString("://")
	if d.Username != "" {
		b.WriteString(d.Username)
		b.WriteString(":")
		b.WriteString(d.Password)
		b.WriteString("@")
	}
	b.WriteString(net.JoinHostPort(d.Host, strconv.Itoa(d.Port)))
	return b.String()
}

// Stats is the aggregate snapshot returned by the management surface.
type Stats struct {
	Total              int     `json:"total"`
	HealthyCount       int     `json:"healthy_count"`
	AverageSuccessRate float64 `json:"average_success_rate"`
}

type entry struct {
	id       string
	protocol string
	host     string
	port     int
	username string
	password string

	enabled   bool // guarded by Pool.mu
	healthy   atomic.Bool
	successes atomic.Int64
	failures  atomic.Int64
	streak    atomic.Int32 // consecutive failures
}

func (e *entry) snapshot(enabled bool) Descriptor {
	return Descriptor{
		ID:           e.id,
		Protocol:     e.protocol,
		Host:         e.host,
		Port:         e.port,
		Username:     e.username,
		Password:     e.password,
		Enabled:      enabled,
		Healthy:      e.healthy.Load(),
		SuccessCount: e.successes.Load(),
		FailureCount: e.failures.Load(),
	}
}

// Pool rotates over enabled egress descriptors. Next and RecordOutcome are
// safe for arbitrary concurrent callers and never block on the mutation lock;
// mutations rebuild an immutable rotation snapshot.
type Pool struct {
	mu      sync.Mutex
	entries []*entry // insertion order
	byID    map[string]*entry

	cursor   atomic.Uint64
	rotation atomic.Pointer[[]*entry] // enabled entries only
}

// NewPool builds a pool seeded with the given specs. A malformed seed spec
// fails construction outright.
func NewPool(specs []string) (*Pool, error) {
	p := &Pool{byID: make(map[string]*entry)}
	p.storeRotation(nil)
	for _, spec := range specs {
		if _, err := p.Add(spec); err != nil {
			return nil, fmt.Errorf("seed proxy %q: %w", spec, err)
		}
	}
	return p, nil
}

// Next returns the next enabled descriptor in round-robin order, or nil when
// the pool is empty or fully disabled.
func (p *Pool) Next() *Descriptor {
	rot := *p.rotation.Load()
	if len(rot) == 0 {
		return nil
	}
	idx := p.cursor.Add(1) - 1
	e := rot[idx%uint64(len(rot))]
	d := e.snapshot(true)
	return &d
}

// Add parses spec ("host:port", "user:pass@host:port", optionally
// scheme-prefixed) and registers the descriptor under id host:port.
func (p *Pool) Add(spec string) (Descriptor, error) {
	e, err := parseSpec(spec)
	if err != nil {
		return Descriptor{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[e.id]; ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrDuplicateProxy, e.id)
	}
	e.enabled = true
	e.healthy.Store(true)
	p.entries = append(p.entries, e)
	p.byID[e.id] = e
	p.rebuildLocked()
	return e.snapshot(true), nil
}

// Remove deletes the descriptor with the given id.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProxyNotFound, id)
	}
	delete(p.byID, id)
	for i, e := range p.entries {
		if e.id == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	p.rebuildLocked()
	return nil
}

// Enable puts the descriptor back into rotation. Idempotent.
func (p *Pool) Enable(id string) error {
	return p.setEnabled(id, true)
}

// Disable removes the descriptor from rotation immediately. Idempotent.
func (p *Pool) Disable(id string) error {
	return p.setEnabled(id, false)
}

func (p *Pool) setEnabled(id string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProxyNotFound, id)
	}
	if e.enabled != enabled {
		e.enabled = enabled
		p.rebuildLocked()
	}
	return nil
}

// RecordOutcome updates the descriptor's counters after a search attempt.
// Three consecutive failures demote it to unhealthy; the next success
// re-promotes. Unknown ids are ignored: the descriptor may have been removed
// while its attempt was in flight.
func (p *Pool) RecordOutcome(id string, success bool) {
	p.mu.Lock()
	e, ok := p.byID[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	if success {
		e.successes.Add(1)
		e.streak.Store(0)
		e.healthy.Store(true)
		return
	}
	e.failures.Add(1)
	if e.streak.Add(1) >= failureThreshold {
		e.healthy.Store(false)
	}
}

// List returns all descriptors in insertion order.
func (p *Pool) List() []Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Descriptor, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.snapshot(e.enabled))
	}
	return out
}

// Stats aggregates pool health. The average success rate is the mean of
// per-descriptor rates over descriptors with at least one recorded attempt.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.entries)}
	var rateSum float64
	var rated int
	for _, e := range p.entries {
		if e.healthy.Load() {
			s.HealthyCount++
		}
		succ := e.successes.Load()
		fail := e.failures.Load()
		if succ+fail > 0 {
			rateSum += float64(succ) / float64(succ+fail)
			rated++
		}
	}
	if rated > 0 {
		s.AverageSuccessRate = rateSum / float64(rated)
	}
	return s
}

// rebuildLocked publishes a fresh rotation snapshot. Caller holds p.mu.
func (p *Pool) rebuildLocked() {
	rot := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.enabled {
			rot = append(rot, e)
		}
	}
	p.storeRotation(rot)
}

func (p *Pool) storeRotation(rot []*entry) {
	p.rotation.Store(&rot)
}

// parseSpec accepts host:port and user:pass@host:port, each optionally
// prefixed with scheme://. The id is always host:port.
func parseSpec(spec string) (*entry, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadProxySpec)
	}

	protocol := "http"
	if idx := strings.Index(s, "://"); idx >= 0 {
		protocol = s[:idx]
		s = s[idx+len("://"):]
		if protocol == "" {
			return nil, fmt.Errorf("%w: empty scheme in %q", ErrBadProxySpec, spec)
		}
	}

	var username, password string
	if at := strings.LastIndex(s, "@"); at >= 0 {
		creds := s[:at]
		s = s[at+1:]
		user, pass, ok := strings.Cut(creds, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("%w: bad credentials in %q", ErrBadProxySpec, spec)
		}
		username, password = user, pass
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil || host == "" {
		return nil, fmt.Errorf("%w: %q is not host:port", ErrBadProxySpec, spec)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: bad port in %q", ErrBadProxySpec, spec)
	}

	return &entry{
		id:       net.JoinHostPort(host, portStr),
		protocol: protocol,
		host:     host,
		port:     port,
		username: username,
		password: password,
	}, nil
}
