package database

import (
	"context"
	"maps"
	"slices"
)

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckAll pings every dependency and returns the failures keyed by name.
func CheckAll(ctx context.Context, deps map[string]Pinger) map[string]error {
	failures := make(map[string]error)
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		if deps[name] == nil {
			continue
		}
		if err := deps[name].Ping(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}
