package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"mixing-extruder/pkg/errors"
)

// Config provides access to a printer.cfg style file with access tracking.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string // Maintains section order

	accessedSections map[string]struct{}
}

// New creates a new empty Config.
func New() *Config {
	return &Config{
		sections:         make(map[string]*Section),
		accessedSections: make(map[string]struct{}),
	}
}

// Load reads a configuration file and returns a Config.
// Supports [include path] directives relative to the including file.
func Load(path string) (*Config, error) {
	c := New()
	visited := make(map[string]bool)
	if err := c.parseFile(path, visited); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses a configuration from a string. Include directives are
// resolved against the working directory.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(strings.NewReader(data), "<string>", ".", make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) parseFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	if visited[abs] {
		return fmt.Errorf("config: recursive include: %s", path)
	}
	visited[abs] = true
	defer func() { visited[abs] = false }()

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	return c.parse(f, path, filepath.Dir(abs), visited)
}

func (c *Config) parse(r io.Reader, name, dir string, visited map[string]bool) error {
	var currentSection string
	var currentOptions map[string]string

	flush := func() {
		if currentSection != "" {
			c.addSection(currentSection, currentOptions)
		}
		currentSection = ""
		currentOptions = nil
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// "#*#" lines are the auto-saved block and parse as regular config.
		if strings.HasPrefix(line, "#*#") {
			line = strings.TrimSpace(line[3:])
		} else if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return fmt.Errorf("config: empty section header at line %d in %s", lineNum, name)
			}

			if pattern, ok := strings.CutPrefix(header, "include "); ok {
				if err := c.include(dir, strings.TrimSpace(pattern), visited); err != nil {
					return fmt.Errorf("config: line %d in %s: %w", lineNum, name, err)
				}
				continue
			}

			currentSection = header
			currentOptions = make(map[string]string)
			continue
		}

		// Options before the first section are ignored
		if currentSection == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			key, value, ok = strings.Cut(line, "=")
		}
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("config: malformed option at line %d in %s: %q", lineNum, name, line)
		}
		currentOptions[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: reading %s: %w", name, err)
	}
	flush()
	return nil
}

func (c *Config) include(dir, pattern string, visited map[string]bool) error {
	if pattern == "" {
		return fmt.Errorf("empty include")
	}
	glob := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(glob)
	if err != nil {
		return fmt.Errorf("invalid include pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)
	if len(matches) == 0 && !strings.ContainsAny(glob, "*?[") {
		return fmt.Errorf("include file does not exist: %s", glob)
	}
	for _, m := range matches {
		if err := c.parseFile(m, visited); err != nil {
			return err
		}
	}
	return nil
}

// addSection adds a section, merging options into an existing one.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// GetSection returns a Section by name, or error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	if sec := c.GetSectionOptional(name); sec != nil {
		return sec, nil
	}
	return nil, ErrMissingSection(name)
}

// GetSectionOptional returns a Section if it exists, or nil if not.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if ok {
		c.accessedSections[name] = struct{}{}
	}
	return sec
}

// HasSection checks if a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// GetSectionNames returns all section names in order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// GetUnusedSections returns the sections nothing has asked for.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []string
	for name := range c.sections {
		if _, ok := c.accessedSections[name]; !ok {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// CheckUnusedOptions returns an error if any accessed section has options
// nobody read.
func (c *Config) CheckUnusedOptions() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var problems []string
	for name, sec := range c.sections {
		if _, ok := c.accessedSections[name]; !ok {
			continue
		}
		unused := sec.GetUnusedOptions()
		if len(unused) > 0 {
			sort.Strings(unused)
			problems = append(problems, fmt.Sprintf("[%s]: unused options %v", name, unused))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return &ConfigError{Message: strings.Join(problems, "; "), Code: errors.ErrConfigOption}
	}
	return nil
}
