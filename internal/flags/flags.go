// Package flags gates optional statesync surfaces behind named switches read
// from the flags section of the config. Known flags have defaults; unknown
// flags are always off.
package flags

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/zjrosen/statesync/internal/log"
)

const (
	// FlagEventStream serves the change feed on GET /_events.
	FlagEventStream = "event-stream"

	// FlagConfigReload watches the config file and applies live settings.
	FlagConfigReload = "config-reload"
)

// Defaults returns the value of every known flag when config is silent.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagEventStream:  true,
		FlagConfigReload: true,
	}
}

// Registry holds flag state. It is read-only after New.
type Registry struct {
	flags map[string]bool
}

// New layers overrides over Defaults. Overrides for unknown names are kept
// so All reports them, but they gate nothing.
func New(overrides map[string]bool) *Registry {
	flags := Defaults()
	maps.Copy(flags, overrides)
	r := &Registry{flags: flags}
	log.Debug(log.CatConfig, "Feature flags initialized", "flags", r.String())
	return r
}

// Enabled reports whether name is on. A nil registry reports every flag off.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name)
		return false
	}
	return value
}

// All returns a copy of the flag state.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// String renders the flags as "name=bool" pairs in name order.
func (r *Registry) String() string {
	all := r.All()
	parts := make([]string, 0, len(all))
	for _, name := range slices.Sorted(maps.Keys(all)) {
		parts = append(parts, fmt.Sprintf("%s=%t", name, all[name]))
	}
	return strings.Join(parts, ",")
}
