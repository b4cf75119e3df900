package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretSource is one strategy for resolving a named secret. Lookup returns
// found=false when the source has no value for the name; errors are reserved
// for broken sources (unreadable files) and abort resolution.
type SecretSource interface {
	Lookup(name string) (value string, found bool, err error)
}

// MissingSecretError reports a required secret that no source could resolve.
type MissingSecretError struct {
	Name string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("required secret %q not found in any source", e.Name)
}

// SecretOptions controls resolution of a single secret.
type SecretOptions struct {
	// Default is returned when no source has a value.
	Default string
	// Required makes resolution fail with *MissingSecretError when no
	// source has a value and Default is empty.
	Required bool
}

// Loader resolves secrets through an ordered chain of sources. The first
// source with a value wins.
type Loader struct {
	sources []SecretSource
}

// NewLoader builds the standard chain: mounted secret files under dir, the
// KEY=VALUE secrets file, plain environment variables, then *_FILE
// indirection. Empty dir or file skips that source.
func NewLoader(dir, file string) *Loader {
	var sources []SecretSource
	if dir != "" {
		sources = append(sources, &DirSource{Dir: dir})
	}
	if file != "" {
		sources = append(sources, &EnvFileSource{Path: file})
	}
	sources = append(sources, &EnvSource{Prefix: EnvPrefix}, &EnvIndirectSource{Prefix: EnvPrefix})
	return &Loader{sources: sources}
}

// NewLoaderFromSources builds a loader with a caller-supplied chain.
func NewLoaderFromSources(sources ...SecretSource) *Loader {
	return &Loader{sources: sources}
}

// WithSource returns a loader that consults src after the existing chain.
func (l *Loader) WithSource(src SecretSource) *Loader {
	sources := make([]SecretSource, len(l.sources), len(l.sources)+1)
	copy(sources, l.sources)
	return &Loader{sources: append(sources, src)}
}

// Resolve looks the secret up through the chain, falling back to the default.
func (l *Loader) Resolve(name string, opts SecretOptions) (string, error) {
	for _, src := range l.sources {
		value, found, err := src.Lookup(name)
		if err != nil {
			return "", fmt.Errorf("secret source failed for %q: %w", name, err)
		}
		if found {
			return value, nil
		}
	}
	if opts.Default != "" {
		return opts.Default, nil
	}
	if opts.Required {
		return "", &MissingSecretError{Name: name}
	}
	return "", nil
}

// DirSource reads secrets mounted as individual files, one per name, the way
// container orchestrators mount them.
type DirSource struct {
	Dir string
}

func (s *DirSource) Lookup(name string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// EnvFileSource reads a KEY=VALUE file. Lines starting with # and blank
// lines are skipped; keys are matched case-insensitively.
type EnvFileSource struct {
	Path string

	parsed map[string]string
}

func (s *EnvFileSource) Lookup(name string) (string, bool, error) {
	if s.parsed == nil {
		if err := s.parse(); err != nil {
			return "", false, err
		}
	}
	value, found := s.parsed[strings.ToUpper(name)]
	return value, found, nil
}

func (s *EnvFileSource) parse() error {
	s.parsed = map[string]string{}

	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.parsed[strings.ToUpper(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return scanner.Err()
}

// EnvSource reads secrets from environment variables named
// <PREFIX>_<UPPER_NAME>.
type EnvSource struct {
	Prefix string
}

func (s *EnvSource) Lookup(name string) (string, bool, error) {
	value, found := os.LookupEnv(envName(s.Prefix, name))
	return value, found, nil
}

// EnvIndirectSource reads <PREFIX>_<UPPER_NAME>_FILE and, when set, returns
// the contents of the file it points to. A set indirection pointing at a
// missing file is an error, not a silent miss.
type EnvIndirectSource struct {
	Prefix string
}

func (s *EnvIndirectSource) Lookup(name string) (string, bool, error) {
	path, found := os.LookupEnv(envName(s.Prefix, name) + "_FILE")
	if !found || path == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// SecretFunc adapts a plain function into a SecretSource for caller-supplied
// strategies.
type SecretFunc func(name string) (string, bool, error)

func (f SecretFunc) Lookup(name string) (string, bool, error) {
	return f(name)
}

func envName(prefix, name string) string {
	upper := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if prefix == "" {
		return upper
	}
	return prefix + "_" + upper
}
