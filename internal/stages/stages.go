// Package stages provides the builtin verification stages: check, test, and
// lints. Each acquires its own workspace, resolves its own toolchain spec, and
// reports one of two terminal outcomes. No stage reads or writes state
// produced by another.
package stages

import (
	"strings"

	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// Builtin stage identifiers.
const (
	IDCheck = "check"
	IDTest  = "test"
	IDLints = "lints"
)

// RegisterBuiltins installs the three builtin stage factories.
func RegisterBuiltins(reg *stage.Registry) {
	reg.MustRegister(IDCheck, NewCheck)
	reg.MustRegister(IDTest, NewTest)
	reg.MustRegister(IDLints, NewLints)
}

// configString reads an optional string override from stage config.
func configString(cfg stage.Config, key string) string {
	if cfg == nil {
		return ""
	}
	if value, ok := cfg[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// resolveChannel picks the run-time channel: the dispatcher's resolved value
// wins, then the stage's own spec.
func resolveChannel(rc stage.RunContext, spec toolchain.Spec) string {
	if channel := strings.TrimSpace(rc.Channel); channel != "" {
		return channel
	}
	return spec.Normalized().Channel
}
