package slicing

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scale is an image resolution multiplier
type Scale int

const (
	Scale1x Scale = 1
	Scale2x Scale = 2
	Scale3x Scale = 3
)

// Scales lists every supported scale in ascending order
var Scales = []Scale{Scale1x, Scale2x, Scale3x}

// ParseScale accepts "1x", "2x", "3x" (or the bare digit)
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1x", "1", "@1x":
		return Scale1x, nil
	case "2x", "2", "@2x":
		return Scale2x, nil
	case "3x", "3", "@3x":
		return Scale3x, nil
	}
	return 0, fmt.Errorf("unknown scale %q", s)
}

func (s Scale) String() string {
	return fmt.Sprintf("%dx", int(s))
}

// Valid reports whether s is one of Scales
func (s Scale) Valid() bool {
	return s >= Scale1x && s <= Scale3x
}

// Suffix is the filename tag of the scale; 1x resources carry none
func (s Scale) Suffix() string {
	if s == Scale1x {
		return ""
	}
	return "@" + s.String()
}

// UnmarshalYAML decodes a scale written as "2x"
func (s *Scale) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseScale(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes the scale as "2x"
func (s Scale) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}
