package mqroute

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPatternLength is the maximum length of a pattern or topic, bounded by
// the 2 byte length prefix MQTT uses for topic strings.
const MaxPatternLength = 65535

// SegmentKind classifies one '/'-separated level of a pattern.
type SegmentKind uint8

const (
	// Literal matches a topic level by exact equality.
	Literal SegmentKind = iota
	// SingleWildcard ('+') matches exactly one level.
	SingleWildcard
	// MultiWildcard ('#') matches all remaining levels, including none.
	MultiWildcard
	// Parameter ('{name}') matches exactly one level and captures it.
	Parameter
)

func (k SegmentKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case SingleWildcard:
		return "single-wildcard"
	case MultiWildcard:
		return "multi-wildcard"
	case Parameter:
		return "parameter"
	default:
		return fmt.Sprintf("SegmentKind(%d)", uint8(k))
	}
}

// Segment is one compiled level of a pattern. Text holds the literal text
// for Literal segments and the parameter name for Parameter segments.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Params maps parameter names to the topic levels they captured.
type Params map[string]string

// Get returns the value captured for name.
func (p Params) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Pattern is a compiled topic pattern. It is immutable and safe for
// concurrent use by multiple goroutines.
//
// Pattern syntax extends MQTT topic filters with named parameters:
//
//	station/+/sensor/{sensorId}/telemetry
//
//   - '+' matches a single level
//   - '#' matches the remaining levels and must be last
//   - '{name}' matches a single level and captures it under name
//   - anything else matches a level verbatim
type Pattern struct {
	text         string
	segments     []Segment
	params       []string
	subscription string
}

// Compile parses a pattern. Errors are *InvalidPatternError values.
func Compile(pattern string) (*Pattern, error) {
	invalid := func(reason string) error {
		return &InvalidPatternError{Pattern: pattern, Reason: reason}
	}

	if pattern == "" {
		return nil, invalid("pattern cannot be empty")
	}
	if len(pattern) > MaxPatternLength {
		return nil, invalid(fmt.Sprintf("length %d exceeds maximum %d", len(pattern), MaxPatternLength))
	}
	if strings.Contains(pattern, "\x00") {
		return nil, invalid("contains null byte")
	}
	if !utf8.ValidString(pattern) {
		return nil, invalid("not valid UTF-8")
	}

	parts := strings.Split(pattern, "/")
	p := &Pattern{
		text:     pattern,
		segments: make([]Segment, 0, len(parts)),
	}
	subscription := make([]string, 0, len(parts))

	for i, part := range parts {
		switch {
		case part == "+":
			p.segments = append(p.segments, Segment{Kind: SingleWildcard})
			subscription = append(subscription, part)

		case part == "#":
			if i != len(parts)-1 {
				return nil, invalid("multi-level wildcard '#' must be the last segment")
			}
			p.segments = append(p.segments, Segment{Kind: MultiWildcard})
			subscription = append(subscription, part)

		case len(part) >= 2 && part[0] == '{' && part[len(part)-1] == '}':
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, invalid("empty parameter name")
			}
			if strings.ContainsAny(name, "{}+#") {
				return nil, invalid(fmt.Sprintf("parameter name %q contains a reserved character", name))
			}
			for _, existing := range p.params {
				if existing == name {
					return nil, invalid(fmt.Sprintf("duplicate parameter name %q", name))
				}
			}
			p.params = append(p.params, name)
			p.segments = append(p.segments, Segment{Kind: Parameter, Text: name})
			subscription = append(subscription, "+")

		default:
			if strings.Contains(part, "+") {
				return nil, invalid("single-level wildcard '+' must occupy entire topic level")
			}
			if strings.Contains(part, "#") {
				return nil, invalid("multi-level wildcard '#' must occupy entire topic level")
			}
			p.segments = append(p.segments, Segment{Kind: Literal, Text: part})
			subscription = append(subscription, part)
		}
	}

	p.subscription = strings.Join(subscription, "/")
	return p, nil
}

// MustCompile is like Compile but panics if the pattern is invalid.
// It simplifies initialization of package-level route tables.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source text of the pattern.
func (p *Pattern) String() string {
	return p.text
}

// Segments returns a copy of the compiled segments.
func (p *Pattern) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// ParamNames returns the parameter names in the order they appear.
func (p *Pattern) ParamNames() []string {
	out := make([]string, len(p.params))
	copy(out, p.params)
	return out
}

// SubscriptionTopic returns the MQTT topic filter to subscribe to for this
// pattern: parameters collapse to '+', everything else is unchanged.
func (p *Pattern) SubscriptionTopic() string {
	return p.subscription
}

// Match tests topic against the pattern. On success it returns the captured
// parameters (empty, never nil, when the pattern has none). A topic that
// does not match is not an error.
//
// Wildcards and parameters match any level, '$' levels included: which
// '$' topics arrive at all is decided by the broker when it applies the
// subscription filter.
func (p *Pattern) Match(topic string) (Params, bool) {
	params := make(Params, len(p.params))
	rest := topic
	done := false

	for _, seg := range p.segments {
		if seg.Kind == MultiWildcard {
			return params, true
		}
		if done {
			return nil, false
		}

		var level string
		var more bool
		level, rest, more = strings.Cut(rest, "/")
		done = !more

		switch seg.Kind {
		case Literal:
			if level != seg.Text {
				return nil, false
			}
		case Parameter:
			params[seg.Text] = level
		}
	}

	if !done {
		return nil, false
	}
	return params, true
}

// Matches reports whether topic matches the pattern.
func (p *Pattern) Matches(topic string) bool {
	_, ok := p.Match(topic)
	return ok
}

// Match tests topic against a compiled pattern.
func Match(p *Pattern, topic string) (Params, bool) {
	return p.Match(topic)
}

// ToSubscriptionTopic compiles pattern and returns its subscription topic.
func ToSubscriptionTopic(pattern string) (string, error) {
	p, err := Compile(pattern)
	if err != nil {
		return "", err
	}
	return p.SubscriptionTopic(), nil
}

// MatchTopic checks if a topic matches a plain MQTT topic filter.
// Supports:
// - '+' matches a single level
// - '#' matches multiple levels (must be last character)
//
// Braces have no meaning here; use Compile for patterns with parameters.
func MatchTopic(filter, topic string) bool {
	if len(topic) > 0 && topic[0] == '$' {
		if len(filter) > 0 && (filter[0] == '+' || filter[0] == '#') {
			return false
		}
	}

	fRest, tRest := filter, topic
	tDone := false

	for fDone := false; !fDone; {
		var f, t string
		var more bool

		f, fRest, more = strings.Cut(fRest, "/")
		fDone = !more

		if f == "#" {
			return true
		}
		if tDone {
			return false
		}

		t, tRest, more = strings.Cut(tRest, "/")
		tDone = !more

		if f != "+" && f != t {
			return false
		}
	}

	return tDone
}

// validatePublishTopic validates a topic for publishing.
// Publish topics must not contain wildcards and must follow MQTT rules.
func validatePublishTopic(topic string) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	case len(topic) > MaxPatternLength:
		return fmt.Errorf("%w: topic length %d exceeds maximum %d", ErrInvalidTopic, len(topic), MaxPatternLength)
	case strings.ContainsAny(topic, "+#"):
		return fmt.Errorf("%w: wildcards are not allowed in published topics", ErrInvalidTopic)
	case strings.Contains(topic, "\x00"):
		return fmt.Errorf("%w: topic contains null byte", ErrInvalidTopic)
	case !utf8.ValidString(topic):
		return fmt.Errorf("%w: topic is not valid UTF-8", ErrInvalidTopic)
	}
	return nil
}
