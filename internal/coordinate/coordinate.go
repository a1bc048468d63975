package coordinate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Coordinate identifies one dependency by name, version and optional group.
// The zero value is not a valid coordinate; use New or Parse.
type Coordinate struct {
	name    string
	version string
	group   string
}

// New creates a Coordinate. Name and version are required, group may be empty.
func New(name, version, group string) (Coordinate, error) {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	group = strings.TrimSpace(group)

	if name == "" {
		return Coordinate{}, fmt.Errorf("coordinate name is required")
	}
	if version == "" {
		return Coordinate{}, fmt.Errorf("coordinate %q: version is required", name)
	}

	return Coordinate{name: name, version: version, group: group}, nil
}

// MustNew is like New but panics on invalid input.
func MustNew(name, version, group string) Coordinate {
	c, err := New(name, version, group)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads the canonical form produced by String: "group:name:version" or "name:version".
func Parse(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)

	last := strings.LastIndex(s, ":")
	if last <= 0 || last == len(s)-1 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: expected [group:]name:version", s)
	}
	version := s[last+1:]
	rest := s[:last]

	var group, name string
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		group, name = rest[:i], rest[i+1:]
		if group == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty group", s)
		}
	} else {
		name = rest
	}

	return New(name, version, group)
}

func (c Coordinate) Name() string    { return c.name }
func (c Coordinate) Version() string { return c.version }
func (c Coordinate) Group() string   { return c.group }

// String returns the canonical form used on the wire and in reports.
func (c Coordinate) String() string {
	if c.group != "" {
		return c.group + ":" + c.name + ":" + c.version
	}
	return c.name + ":" + c.version
}

// MarshalJSON encodes the coordinate as its canonical string.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Sort orders coordinates by canonical string.
func Sort(coords []Coordinate) {
	sort.SliceStable(coords, func(i, j int) bool {
		return coords[i].String() < coords[j].String()
	})
}

// Dedupe drops repeated coordinates, keeping the first occurrence.
func Dedupe(coords []Coordinate) []Coordinate {
	seen := make(map[string]struct{}, len(coords))
	out := coords[:0:0]
	for _, c := range coords {
		key := c.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
