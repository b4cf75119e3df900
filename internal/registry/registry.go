// Package registry mounts route modules onto the router from an explicit
// registration list. Every module is validated up front so a malformed one
// fails startup instead of silently serving nothing.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Module is one mountable group of routes. Prefix may return "" to let the
// registry derive one; Tags classify the module for the route listing.
type Module interface {
	Name() string
	Prefix() string
	Tags() []string
	Routes() chi.Router
}

// RegistrationError reports a module that failed validation. Startup aborts
// on the first one.
type RegistrationError struct {
	Module string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("route module %q rejected: %s", e.Module, e.Reason)
}

// Options tunes mounting.
type Options struct {
	// BasePrefix is prepended to derived prefixes, "/api" by default.
	BasePrefix string
	// Prefixes overrides mount points by module name. A module's own
	// non-empty Prefix still wins over an override.
	Prefixes map[string]string
}

// Mounted describes one successfully mounted module.
type Mounted struct {
	Name   string   `json:"name"`
	Prefix string   `json:"prefix"`
	Tags   []string `json:"tags,omitempty"`
}

// Registry validates and mounts route modules.
type Registry struct {
	opts    Options
	logger  *slog.Logger
	mounted []Mounted
}

// New creates a registry.
func New(opts Options, logger *slog.Logger) *Registry {
	if opts.BasePrefix == "" {
		opts.BasePrefix = "/api"
	}
	return &Registry{
		opts:   opts,
		logger: logger.With(slog.String("component", "registry")),
	}
}

// Mount validates every module and mounts it on the router. The first
// invalid module aborts with a *RegistrationError; nothing is mounted
// partially because validation runs before any Mount call.
func (r *Registry) Mount(router chi.Router, modules []Module) error {
	resolved := make([]Mounted, 0, len(modules))
	seenNames := make(map[string]struct{}, len(modules))
	seenPrefixes := make(map[string]string, len(modules))

	for _, m := range modules {
		if m == nil {
			return &RegistrationError{Module: "<nil>", Reason: "module is nil"}
		}
		name := m.Name()
		if name == "" {
			return &RegistrationError{Module: "<unnamed>", Reason: "module has no name"}
		}
		if _, dup := seenNames[name]; dup {
			return &RegistrationError{Module: name, Reason: "duplicate module name"}
		}
		seenNames[name] = struct{}{}

		if m.Routes() == nil {
			return &RegistrationError{Module: name, Reason: "module returns a nil router"}
		}

		prefix := r.resolvePrefix(m)
		if err := validatePrefix(prefix); err != nil {
			return &RegistrationError{Module: name, Reason: err.Error()}
		}
		if owner, taken := seenPrefixes[prefix]; taken {
			return &RegistrationError{
				Module: name,
				Reason: fmt.Sprintf("prefix %q already mounted by module %q", prefix, owner),
			}
		}
		seenPrefixes[prefix] = name

		resolved = append(resolved, Mounted{Name: name, Prefix: prefix, Tags: m.Tags()})
	}

	for i, m := range modules {
		router.Mount(resolved[i].Prefix, m.Routes())
		r.logger.Info("route module mounted",
			slog.String("module", resolved[i].Name),
			slog.String("prefix", resolved[i].Prefix),
		)
	}
	r.mounted = resolved
	return nil
}

// Mounted lists the modules mounted so far, for the root info endpoint.
func (r *Registry) MountedModules() []Mounted {
	return r.mounted
}

// resolvePrefix applies precedence: the module's own prefix, then the
// configured override, then base prefix plus module name.
func (r *Registry) resolvePrefix(m Module) string {
	if p := m.Prefix(); p != "" {
		return p
	}
	if p, ok := r.opts.Prefixes[m.Name()]; ok && p != "" {
		return p
	}
	return r.opts.BasePrefix + "/" + m.Name()
}

func validatePrefix(prefix string) error {
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("prefix %q must start with /", prefix)
	}
	if len(prefix) > 1 && strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("prefix %q must not end with /", prefix)
	}
	if strings.ContainsAny(prefix, " \t\n") {
		return fmt.Errorf("prefix %q must not contain whitespace", prefix)
	}
	return nil
}
