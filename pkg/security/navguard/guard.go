// Package navguard decides which URLs browser instances may be sent to.
//
// Hosts are normalized to their ASCII (punycode) form before matching, so a
// rule for "xn--bcher-kva.example" also covers "bücher.example". Patterns use
// glob syntax with '.' as separator: "*.example.com" matches exactly one
// label, "**.example.com" matches any depth.
package navguard

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"golang.org/x/net/idna"
)

// ViolationType identifies why a URL was rejected.
type ViolationType string

const (
	ViolationMalformed ViolationType = "malformed_url"
	ViolationScheme    ViolationType = "scheme"
	ViolationDenied    ViolationType = "denied_host"
	ViolationNotListed ViolationType = "host_not_allowed"
)

// Violation is returned for a rejected URL.
type Violation struct {
	Type    ViolationType
	URL     string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("navigation rejected (%s): %s", v.Type, v.Message)
}

var allowedSchemes = map[string]bool{"http": true, "https": true}

// Guard validates navigation targets against host patterns. Denied
// patterns take precedence; an empty allow list allows every host.
type Guard struct {
	mu      sync.RWMutex
	allowed []glob.Glob
	denied  []glob.Glob
	rules   Rules
}

// Rules are the raw host patterns of a Guard.
type Rules struct {
	Allowed []string `json:"allowed_hosts" yaml:"allowed_hosts"`
	Denied  []string `json:"denied_hosts" yaml:"denied_hosts"`
}

// New compiles the rules into a guard.
func New(rules Rules) (*Guard, error) {
	g := &Guard{}
	if err := g.Update(rules); err != nil {
		return nil, err
	}
	return g, nil
}

// Update atomically replaces the rules. On error the previous rules stay.
func (g *Guard) Update(rules Rules) error {
	allowed, err := compile(rules.Allowed)
	if err != nil {
		return fmt.Errorf("invalid allowed host pattern: %w", err)
	}
	denied, err := compile(rules.Denied)
	if err != nil {
		return fmt.Errorf("invalid denied host pattern: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed = allowed
	g.denied = denied
	g.rules = Rules{
		Allowed: append([]string(nil), rules.Allowed...),
		Denied:  append([]string(nil), rules.Denied...),
	}
	return nil
}

// Rules returns a copy of the active rules.
func (g *Guard) Rules() Rules {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Rules{
		Allowed: append([]string(nil), g.rules.Allowed...),
		Denied:  append([]string(nil), g.rules.Denied...),
	}
}

// Check returns nil when rawURL may be visited, or a *Violation.
func (g *Guard) Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return &Violation{Type: ViolationMalformed, URL: rawURL, Message: err.Error()}
	}
	scheme := strings.ToLower(u.Scheme)
	if !allowedSchemes[scheme] {
		return &Violation{Type: ViolationScheme, URL: rawURL, Message: fmt.Sprintf("scheme %q is not allowed", u.Scheme)}
	}
	if u.Hostname() == "" {
		return &Violation{Type: ViolationMalformed, URL: rawURL, Message: "missing host"}
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return &Violation{Type: ViolationMalformed, URL: rawURL, Message: err.Error()}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, p := range g.denied {
		if p.Match(host) {
			return &Violation{Type: ViolationDenied, URL: rawURL, Message: fmt.Sprintf("host %s is denied", host)}
		}
	}
	if len(g.allowed) == 0 {
		return nil
	}
	for _, p := range g.allowed {
		if p.Match(host) {
			return nil
		}
	}
	return &Violation{Type: ViolationNotListed, URL: rawURL, Message: fmt.Sprintf("host %s is not in the allow list", host)}
}

// NormalizeHost lowercases host and converts it to its ASCII form.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	return ascii, nil
}

// compile normalizes each literal label of a pattern and compiles it.
func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		labels := strings.Split(strings.ToLower(p), ".")
		for i, label := range labels {
			if strings.ContainsAny(label, "*?[]{}!\\") {
				continue
			}
			ascii, err := idna.Lookup.ToASCII(label)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", raw, err)
			}
			labels[i] = ascii
		}
		g, err := glob.Compile(strings.Join(labels, "."), '.')
		if err != nil {
			return nil, fmt.Errorf("%q: %w", raw, err)
		}
		out = append(out, g)
	}
	return out, nil
}
