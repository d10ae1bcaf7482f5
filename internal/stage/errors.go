package stage

import (
	"errors"

	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// Class buckets a stage failure for status records and reporting. Every
// failure is terminal to its stage immediately; classes exist so consumers can
// tell a broken toolchain from a failing test without parsing output.
type Class string

const (
	ClassNone             Class = ""
	ClassProvisioning     Class = "provisioning"
	ClassToolchainInstall Class = "toolchain-install"
	ClassCheck            Class = "check"
	ClassTest             Class = "test"
	ClassFormat           Class = "format"
	ClassLint             Class = "lint"
	ClassExecution        Class = "execution"
)

// CheckError reports error-class diagnostics from the static check.
type CheckError struct {
	Output string
}

func (e *CheckError) Error() string { return "check reported errors" }

// TestFailure reports at least one failing test. A single failure fails the
// whole stage; there is no partial-success reporting.
type TestFailure struct {
	Output string
}

func (e *TestFailure) Error() string { return "test suite failed" }

// FormatMismatch reports a file whose formatting differs from canonical
// style. Zero tolerance: any deviation triggers it.
type FormatMismatch struct {
	Output string
}

func (e *FormatMismatch) Error() string { return "formatting differs from canonical style" }

// LintViolation reports a lint diagnostic. Warnings are escalated to errors,
// so any diagnostic at all triggers it.
type LintViolation struct {
	Output string
}

func (e *LintViolation) Error() string { return "lint diagnostics emitted (zero-warning policy)" }

// Classify maps an error to its failure class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var install *toolchain.InstallError
	if errors.As(err, &install) {
		return ClassToolchainInstall
	}
	var check *CheckError
	if errors.As(err, &check) {
		return ClassCheck
	}
	var test *TestFailure
	if errors.As(err, &test) {
		return ClassTest
	}
	var format *FormatMismatch
	if errors.As(err, &format) {
		return ClassFormat
	}
	var lint *LintViolation
	if errors.As(err, &lint) {
		return ClassLint
	}
	return ClassExecution
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
