// Package manifest reads dependency coordinates out of project manifests.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"iqaudit/internal/coordinate"
)

// Parser parses a dependency file.
type Parser interface {
	Parse(path string) ([]coordinate.Coordinate, error)
}

// GoModParser parses go.mod files. A module path is split at its last slash
// into group and name.
type GoModParser struct{}

func (p *GoModParser) Parse(file string) ([]coordinate.Coordinate, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var coords []coordinate.Coordinate
	scanner := bufio.NewScanner(f)
	inRequire := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		switch {
		case line == "require (":
			inRequire = true
			continue
		case line == ")" && inRequire:
			inRequire = false
			continue
		}

		var fields []string
		if strings.HasPrefix(line, "require ") {
			fields = strings.Fields(strings.TrimPrefix(line, "require "))
		} else if inRequire {
			fields = strings.Fields(line)
		}
		if len(fields) < 2 {
			continue
		}

		c, err := goModuleCoordinate(fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		coords = append(coords, c)
	}
	return coords, scanner.Err()
}

func goModuleCoordinate(module, version string) (coordinate.Coordinate, error) {
	group, name := path.Split(module)
	return coordinate.New(name, version, strings.TrimSuffix(group, "/"))
}

// PackageJSONParser parses package.json files. Scoped packages ("@scope/name")
// keep the scope as their group. Dependencies whose version is not a plain
// version after dropping a leading range operator (ranges, tags, file:, git
// and npm: aliases) are skipped with a warning.
type PackageJSONParser struct {
	IncludeDev bool
	Logger     *slog.Logger
}

// plainVersion matches 1, 1.2, 1.2.3 with optional pre-release and build parts.
var plainVersion = regexp.MustCompile(`^\d+(\.\d+){0,2}(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p *PackageJSONParser) Parse(file string) ([]coordinate.Coordinate, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data packageJSON
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	coords, err := p.npmCoordinates(file, data.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if p.IncludeDev {
		dev, err := p.npmCoordinates(file, data.DevDependencies)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		coords = append(coords, dev...)
	}
	return coords, nil
}

func (p *PackageJSONParser) npmCoordinates(file string, deps map[string]string) ([]coordinate.Coordinate, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	coords := make([]coordinate.Coordinate, 0, len(names))
	for _, pkg := range names {
		var group, name string
		if strings.HasPrefix(pkg, "@") {
			if i := strings.Index(pkg, "/"); i > 0 {
				group, name = pkg[:i], pkg[i+1:]
			}
		}
		if name == "" {
			name = pkg
		}

		version := cleanNpmVersion(deps[pkg])
		if version != "" && !plainVersion.MatchString(version) {
			p.logger().Warn("skipping dependency without a pinned version",
				"file", file, "package", pkg, "version", deps[pkg])
			continue
		}

		c, err := coordinate.New(name, version, group)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}

func (p *PackageJSONParser) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

func cleanNpmVersion(v string) string {
	v = strings.TrimSpace(v)
	for _, prefix := range []string{"^", "~", ">=", ">", "=", "v"} {
		v = strings.TrimPrefix(v, prefix)
	}
	return strings.TrimSpace(v)
}

// ListParser reads one canonical coordinate per line. Blank lines and lines
// starting with '#' are ignored.
type ListParser struct{}

func (p *ListParser) Parse(file string) ([]coordinate.Coordinate, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var coords []coordinate.Coordinate
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, err := coordinate.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", file, n, err)
		}
		coords = append(coords, c)
	}
	return coords, scanner.Err()
}

// ParserFor picks a parser from the file name. logger may be nil.
func ParserFor(file string, includeDev bool, logger *slog.Logger) (Parser, error) {
	base := filepath.Base(file)
	switch {
	case base == "go.mod" || strings.HasSuffix(base, ".mod"):
		return &GoModParser{}, nil
	case base == "package.json" || strings.HasSuffix(base, ".json"):
		return &PackageJSONParser{IncludeDev: includeDev, Logger: logger}, nil
	case strings.HasSuffix(base, ".txt") || strings.HasSuffix(base, ".list"):
		return &ListParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported manifest type: %s", file)
	}
}

// Detect returns the known manifests present in dir.
func Detect(dir string) []string {
	var found []string
	for _, name := range []string{"go.mod", "package.json"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	return found
}

// Load parses every file and returns the deduplicated coordinates.
func Load(files []string, includeDev bool, logger *slog.Logger) ([]coordinate.Coordinate, error) {
	var all []coordinate.Coordinate
	for _, file := range files {
		parser, err := ParserFor(file, includeDev, logger)
		if err != nil {
			return nil, err
		}
		coords, err := parser.Parse(file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		all = append(all, coords...)
	}
	return coordinate.Dedupe(all), nil
}
