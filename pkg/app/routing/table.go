package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type UpstreamKind string

const (
	UpstreamAPI      UpstreamKind = "api"
	UpstreamFrontend UpstreamKind = "frontend"
)

var (
	ErrNoCatchAll       = errors.New("route table has no catch-all \"/\" rule")
	ErrDuplicatePrefix  = errors.New("duplicate route prefix")
	ErrInvalidPrefix    = errors.New("route prefix must start with \"/\"")
	ErrUnknownUpstream  = errors.New("unknown upstream kind")
	ErrCatchAllUpstream = errors.New("catch-all rule must target the frontend upstream")
)

func ParseUpstreamKind(s string) (UpstreamKind, error) {
	switch UpstreamKind(strings.ToLower(strings.TrimSpace(s))) {
	case UpstreamAPI:
		return UpstreamAPI, nil
	case UpstreamFrontend:
		return UpstreamFrontend, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUpstream, s)
	}
}

// Rule routes every path under Prefix to one upstream.
type Rule struct {
	Name        string       `mapstructure:"name"`
	Prefix      string       `mapstructure:"prefix"`
	Upstream    UpstreamKind `mapstructure:"upstream"`
	StripPrefix bool         `mapstructure:"strip_prefix"`
	Websocket   bool         `mapstructure:"websocket"`
}

// CORSScoped reports whether responses on this rule carry the CORS policy.
func (r Rule) CORSScoped() bool {
	return r.Upstream == UpstreamAPI
}

func (r Rule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Prefix
}

// Table is an immutable set of rules ordered longest prefix first.
type Table struct {
	rules []Rule
}

func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	ordered := make([]Rule, 0, len(rules))
	hasCatchAll := false

	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, r.Prefix)
		}
		if _, err := ParseUpstreamKind(string(r.Upstream)); err != nil {
			return nil, err
		}
		r.Prefix = NormalizePrefix(r.Prefix)
		if _, dup := seen[r.Prefix]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePrefix, r.Prefix)
		}
		seen[r.Prefix] = struct{}{}
		if r.Prefix == "/" {
			if r.Upstream != UpstreamFrontend {
				return nil, ErrCatchAllUpstream
			}
			hasCatchAll = true
		}
		ordered = append(ordered, r)
	}
	if !hasCatchAll {
		return nil, ErrNoCatchAll
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Prefix) > len(ordered[j].Prefix)
	})

	return &Table{rules: ordered}, nil
}

// Match returns the rule with the longest prefix covering path, together with
// the path to send upstream.
func (t *Table) Match(path string) (*Rule, string, bool) {
	if path == "" {
		path = "/"
	}
	for i := range t.rules {
		rule := &t.rules[i]
		if !MatchPrefix(path, rule.Prefix) {
			continue
		}
		forward := path
		if rule.StripPrefix {
			forward = StripPrefix(path, rule.Prefix)
		}
		return rule, forward, true
	}
	return nil, "", false
}

func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// NormalizePrefix drops trailing slashes so "/api/" and "/api" are the same rule.
func NormalizePrefix(prefix string) string {
	trimmed := strings.TrimRight(prefix, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// MatchPrefix matches on segment boundaries: "/api" covers "/api" and
// "/api/x" but not "/apix".
func MatchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// StripPrefix removes prefix from path exactly once.
func StripPrefix(path, prefix string) string {
	if prefix == "/" || !MatchPrefix(path, prefix) {
		return path
	}
	rest := path[len(prefix):]
	if rest == "" {
		return "/"
	}
	return rest
}
