package toolchain

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultChannel is the release channel used when a spec leaves it blank.
const DefaultChannel = "stable"

// Component names an optional toolchain add-on.
type Component string

const (
	// ComponentFormatter provides `cargo fmt`.
	ComponentFormatter Component = "rustfmt"
	// ComponentLinter provides `cargo clippy`.
	ComponentLinter Component = "clippy"
)

// Spec is the immutable toolchain descriptor a stage resolves once per
// invocation: a release channel plus an optional component set. Specs are
// never shared or mutated across stages.
type Spec struct {
	Channel    string      `json:"channel" yaml:"channel"`
	Components []Component `json:"components,omitempty" yaml:"components,omitempty"`
}

// Normalized returns a copy with the channel defaulted and the component set
// deduplicated and sorted, so equivalent specs compare equal.
func (s Spec) Normalized() Spec {
	out := Spec{Channel: strings.TrimSpace(s.Channel)}
	if out.Channel == "" {
		out.Channel = DefaultChannel
	}
	if len(s.Components) == 0 {
		return out
	}
	set := make(map[Component]struct{}, len(s.Components))
	for _, comp := range s.Components {
		name := Component(strings.TrimSpace(string(comp)))
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	if len(set) == 0 {
		return out
	}
	out.Components = make([]Component, 0, len(set))
	for comp := range set {
		out.Components = append(out.Components, comp)
	}
	sort.Slice(out.Components, func(i, j int) bool { return out.Components[i] < out.Components[j] })
	return out
}

// Validate ensures the spec names a usable channel and known components.
func (s Spec) Validate() error {
	norm := s.Normalized()
	for _, comp := range norm.Components {
		switch comp {
		case ComponentFormatter, ComponentLinter:
		default:
			return fmt.Errorf("toolchain: unknown component %q", comp)
		}
	}
	return nil
}

// String renders the spec for log lines, e.g. "stable+rustfmt+clippy".
func (s Spec) String() string {
	norm := s.Normalized()
	parts := []string{norm.Channel}
	for _, comp := range norm.Components {
		parts = append(parts, string(comp))
	}
	return strings.Join(parts, "+")
}

// InstallError reports a failed toolchain installation. It is terminal to the
// stage that requested the install; the verification command never runs.
type InstallError struct {
	Spec   Spec
	Step   string
	Output string
	Err    error
}

// Error satisfies the error interface.
func (e *InstallError) Error() string {
	if e == nil {
		return "toolchain: install failed"
	}
	msg := fmt.Sprintf("toolchain: install %s: %s failed", e.Spec.String(), e.Step)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *InstallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
