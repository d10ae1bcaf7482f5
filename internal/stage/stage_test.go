package stage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

type fakeStage struct {
	info Info
}

func (s fakeStage) Info() Info { return s.info }

func (s fakeStage) Run(ctx context.Context, rc RunContext) (Result, error) {
	return Pass("ok"), nil
}

func TestInfoValidate(t *testing.T) {
	valid := Info{ID: "check", Name: "Check"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid info: %v", err)
	}
	if err := (Info{Name: "Check"}).Validate(); err == nil {
		t.Fatalf("expected missing id error")
	}
	if err := (Info{ID: "check"}).Validate(); err == nil {
		t.Fatalf("expected missing name error")
	}
	bad := Info{ID: "check", Name: "Check", Toolchain: toolchain.Spec{Components: []toolchain.Component{"miri"}}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected toolchain validation error")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{&toolchain.InstallError{}, ClassToolchainInstall},
		{&CheckError{}, ClassCheck},
		{&TestFailure{}, ClassTest},
		{&FormatMismatch{}, ClassFormat},
		{&LintViolation{}, ClassLint},
		{errors.New("command never ran"), ClassExecution},
		{fmt.Errorf("wrapped: %w", &LintViolation{}), ClassLint},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestFailCarriesClassAndMessage(t *testing.T) {
	result := Fail(&FormatMismatch{Output: "diff"})
	if result.Outcome != OutcomeFailure {
		t.Fatalf("expected failure outcome")
	}
	if result.Class != ClassFormat {
		t.Fatalf("expected format class, got %s", result.Class)
	}
	if result.Message == "" {
		t.Fatalf("expected message")
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	factory := func(cfg Config) (Stage, error) {
		return fakeStage{info: Info{ID: "check", Name: "Check"}}, nil
	}
	if err := reg.Register("check", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("check", factory); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	resolved, err := reg.Resolve("check", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Info().ID != "check" {
		t.Fatalf("resolved wrong stage: %+v", resolved.Info())
	}
	if _, err := reg.Resolve("missing", nil); err == nil {
		t.Fatalf("expected unknown id error")
	}
	ids := reg.IDs()
	if len(ids) != 1 || ids[0] != "check" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestRegistryRejectsInvalidInfo(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("broken", func(cfg Config) (Stage, error) {
		return fakeStage{info: Info{ID: "broken"}}, nil
	})
	if _, err := reg.Resolve("broken", nil); err == nil {
		t.Fatalf("expected info validation error")
	}
}
