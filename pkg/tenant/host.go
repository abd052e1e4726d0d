package tenant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const (
	// TenantToken marks the host segment that carries the identifier.
	TenantToken = "__tenant__"
	// DefaultHostTemplate takes the first host segment as the identifier.
	DefaultHostTemplate = TenantToken + ".*"
)

// HostStrategy matches the request host against a template.
//
// Template segments are separated by dots:
//
//	__tenant__  the identifier, exactly once
//	?           any single segment
//	*           zero or more segments, at most once
//	literal     matched case-insensitively
//
// A template consisting only of __tenant__ captures the whole host.
type HostStrategy struct {
	template string
	re       *regexp.Regexp
}

// NewHostStrategy compiles the template, falling back to DefaultHostTemplate
// when it is empty.
func NewHostStrategy(template string) (*HostStrategy, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		template = DefaultHostTemplate
	}
	re, err := compileHostTemplate(template)
	if err != nil {
		return nil, err
	}
	return &HostStrategy{template: template, re: re}, nil
}

// MustHostStrategy is like NewHostStrategy but panics on a bad template.
func MustHostStrategy(template string) *HostStrategy {
	s, err := NewHostStrategy(template)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *HostStrategy) Name() string { return StrategyHost }

// Template returns the configured template.
func (s *HostStrategy) Template() string { return s.template }

func (s *HostStrategy) Identify(_ context.Context, req Request) (string, error) {
	host := req.Host()
	if host == "" {
		return "", nil
	}
	m := s.re.FindStringSubmatch(host)
	if m == nil {
		return "", nil
	}
	return m[s.re.SubexpIndex("identifier")], nil
}

func compileHostTemplate(template string) (*regexp.Regexp, error) {
	if n := strings.Count(template, TenantToken); n != 1 {
		return nil, fmt.Errorf("%w: %q must contain %s exactly once", ErrInvalidTemplate, template, TenantToken)
	}
	if template == TenantToken {
		return regexp.MustCompile(`(?i)^(?P<identifier>.+)$`), nil
	}
	if strings.Count(template, "*") > 1 {
		return nil, fmt.Errorf("%w: %q: wildcard \"*\" may occur only once", ErrInvalidTemplate, template)
	}

	segments := strings.Split(template, ".")
	var b strings.Builder
	b.WriteString(`(?i)^`)

	// skipSep is set after a leading or inner "*", whose pattern already
	// consumes the following dot.
	skipSep := false
	for i, seg := range segments {
		last := i == len(segments)-1
		if seg == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidTemplate, template)
		}
		if seg != "*" && seg != "?" && strings.ContainsAny(seg, "*?") {
			return nil, fmt.Errorf("%w: %q: wildcards must fill a whole segment", ErrInvalidTemplate, template)
		}
		if seg != TenantToken && strings.Contains(seg, TenantToken) {
			return nil, fmt.Errorf("%w: %q: %s must fill a whole segment", ErrInvalidTemplate, template, TenantToken)
		}

		if seg == "*" && last {
			b.WriteString(`(\.[^.]+)*`)
			continue
		}
		if i > 0 && !skipSep {
			b.WriteString(`\.`)
		}
		skipSep = false

		switch seg {
		case "*":
			b.WriteString(`([^.]+\.)*`)
			skipSep = true
		case "?":
			b.WriteString(`[^.]+`)
		case TenantToken:
			b.WriteString(`(?P<identifier>[^.]+)`)
		default:
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTemplate, template, err)
	}
	return re, nil
}
