package access

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// RouteRule describes a protected path prefix. An empty Roles slice means any
// authenticated role may pass.
type RouteRule struct {
	Prefix string `yaml:"prefix"`
	Roles  []Role `yaml:"roles"`
}

// Classification is the classifier answer for a single path.
type Classification struct {
	RouteID       string
	Protected     bool
	RequiredRoles []Role
}

// Permits reports whether role satisfies the classification.
func (c Classification) Permits(role Role) bool {
	if len(c.RequiredRoles) == 0 {
		return true
	}
	for _, r := range c.RequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}

// DefaultPublicPrefixes are never gated so the application cannot lock out its
// own entry points.
var DefaultPublicPrefixes = []string{"/", "/sign-in", "/sign-up", "/sign-out", "/static", "/unauthorized", "/healthz"}

type compiledRule struct {
	prefix string
	roles  []Role
}

// Classifier is an immutable snapshot of the route table.
type Classifier struct {
	rules  []compiledRule
	public []string
}

// NewClassifier compiles rules and public prefixes into a lookup sorted by
// specificity. The inputs are copied.
func NewClassifier(rules []RouteRule, public []string) (*Classifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		prefix := normalizePath(rule.Prefix)
		if prefix == "/" {
			return nil, errors.New("access: root prefix cannot be protected")
		}
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("access: duplicate route prefix %q", prefix)
		}
		seen[prefix] = struct{}{}
		roles := make([]Role, 0, len(rule.Roles))
		for _, r := range rule.Roles {
			parsed, err := ParseRole(string(r))
			if err != nil {
				return nil, fmt.Errorf("access: route %q: %w", prefix, err)
			}
			roles = append(roles, parsed)
		}
		compiled = append(compiled, compiledRule{prefix: prefix, roles: roles})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return len(compiled[i].prefix) > len(compiled[j].prefix)
	})

	pub := make([]string, 0, len(public))
	for _, p := range public {
		pub = append(pub, normalizePath(p))
	}
	return &Classifier{rules: compiled, public: pub}, nil
}

// Classify resolves path to exactly one classification. Unknown paths are public.
func (c *Classifier) Classify(raw string) Classification {
	p := normalizePath(raw)
	if c == nil {
		return Classification{RouteID: p}
	}
	for _, pub := range c.public {
		if pub == "/" {
			if p == "/" {
				return Classification{RouteID: p}
			}
			continue
		}
		if hasPathPrefix(p, pub) {
			return Classification{RouteID: p}
		}
	}
	for _, rule := range c.rules {
		if hasPathPrefix(p, rule.prefix) {
			return Classification{RouteID: p, Protected: true, RequiredRoles: rule.roles}
		}
	}
	return Classification{RouteID: p}
}

func hasPathPrefix(p, prefix string) bool {
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

func normalizePath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return path.Clean(raw)
}
