package internal

import (
	"fmt"
	"strings"
)

type segmentKind uint8

const (
	segmentLiteral segmentKind = iota
	segmentCapture
	segmentWildcard
)

type segment struct {
	value string
	kind  segmentKind
}

// Pattern is a compiled path template.
//
// Segments are separated by "/" and are either literal text, a named
// capture "<name>" matching exactly one non-empty segment, or a wildcard
// "*" matching one or more segments. Leading and trailing slashes are
// ignored on both the pattern and the matched path.
type Pattern struct {
	raw      string
	segments []segment
	wildcard int // index of the wildcard segment, -1 if none
}

// CompilePattern parses raw into a Pattern.
// It fails with ErrMalformedPattern on unbalanced angle brackets, empty or
// duplicate capture names, empty segments, or more than one wildcard.
func CompilePattern(raw string) (*Pattern, error) {
	p := &Pattern{raw: raw, wildcard: -1}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return p, nil
	}

	seen := make(map[string]struct{})
	for i, part := range strings.Split(trimmed, "/") {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrMalformedPattern, raw)
		case part == "*":
			if p.wildcard >= 0 {
				return nil, fmt.Errorf("%w: %q has more than one wildcard", ErrMalformedPattern, raw)
			}
			p.wildcard = i
			p.segments = append(p.segments, segment{kind: segmentWildcard})
		case strings.HasPrefix(part, "<"):
			name := strings.TrimSuffix(part[1:], ">")
			if len(name) != len(part)-2 || name == "" || strings.ContainsAny(name, "<>*") {
				return nil, fmt.Errorf("%w: %q has an invalid capture %q", ErrMalformedPattern, raw, part)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%w: %q repeats capture %q", ErrMalformedPattern, raw, name)
			}
			seen[name] = struct{}{}
			p.segments = append(p.segments, segment{kind: segmentCapture, value: name})
		case strings.ContainsAny(part, "<>"):
			return nil, fmt.Errorf("%w: %q has unbalanced brackets in %q", ErrMalformedPattern, raw, part)
		default:
			p.segments = append(p.segments, segment{kind: segmentLiteral, value: part})
		}
	}
	return p, nil
}

// MustCompilePattern is CompilePattern that panics on error.
func MustCompilePattern(raw string) *Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical form of the pattern: a leading slash and no
// trailing slash.
func (p *Pattern) String() string {
	if len(p.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		switch s.kind {
		case segmentCapture:
			b.WriteString("<" + s.value + ">")
		case segmentWildcard:
			b.WriteByte('*')
		default:
			b.WriteString(s.value)
		}
	}
	return b.String()
}

// shape is the pattern with capture names erased. Two patterns with the same
// shape match exactly the same paths.
func (p *Pattern) shape() string {
	if len(p.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		switch s.kind {
		case segmentCapture:
			b.WriteString("<>")
		case segmentWildcard:
			b.WriteByte('*')
		default:
			b.WriteString(s.value)
		}
	}
	return b.String()
}

// Names returns the capture names in declaration order.
func (p *Pattern) Names() []string {
	var names []string
	for _, s := range p.segments {
		if s.kind == segmentCapture {
			names = append(names, s.value)
		}
	}
	return names
}

// Match reports whether path matches the pattern and returns the captured
// parameters in declaration order.
func (p *Pattern) Match(path string) (Params, bool) {
	trimmed := strings.Trim(path, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}

	if p.wildcard < 0 {
		if len(parts) != len(p.segments) {
			return nil, false
		}
		return matchSegments(p.segments, parts, nil)
	}

	// A lone "*" also matches the root.
	if len(p.segments) == 1 {
		return Params{}, true
	}

	head := p.segments[:p.wildcard]
	tail := p.segments[p.wildcard+1:]
	if len(parts) < len(head)+len(tail)+1 {
		return nil, false
	}

	params, ok := matchSegments(head, parts[:len(head)], nil)
	if !ok {
		return nil, false
	}
	return matchSegments(tail, parts[len(parts)-len(tail):], params)
}

func matchSegments(segs []segment, parts []string, params Params) (Params, bool) {
	if params == nil {
		params = make(Params, 0, len(segs))
	}
	for i, s := range segs {
		part := parts[i]
		switch s.kind {
		case segmentLiteral:
			if part != s.value {
				return nil, false
			}
		case segmentCapture:
			if part == "" {
				return nil, false
			}
			params = append(params, Param{Name: s.value, Value: part})
		}
	}
	return params, true
}

// JoinPath joins a prefix and a local path so that exactly one slash
// separates them and no trailing slash remains. The root is "/".
func JoinPath(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	path = strings.Trim(path, "/")
	switch {
	case prefix == "" && path == "":
		return "/"
	case prefix == "":
		return "/" + path
	case path == "":
		return "/" + prefix
	default:
		return "/" + prefix + "/" + path
	}
}
