package domain

import (
	"fmt"
	"strings"
)

// Status is the debounced availability of an endpoint.
type Status int

const (
	StatusUnknown Status = iota
	StatusUp
	StatusDown
	StatusPlannedOut
)

var statusNames = map[Status]string{
	StatusUnknown:    "UNKNOWN",
	StatusUp:         "UP",
	StatusDown:       "DOWN",
	StatusPlannedOut: "PLANNED_OUT",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus is the inverse of String, case-insensitive.
func ParseStatus(raw string) (Status, error) {
	up := strings.ToUpper(strings.TrimSpace(raw))
	for s, n := range statusNames {
		if n == up {
			return s, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", raw)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
