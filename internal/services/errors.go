package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrCanceled      = errors.New("canceled")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classification names the failure class of err for summaries and exit codes.
type Classification string

const (
	ClassNone          Classification = ""
	ClassCanceled      Classification = "canceled"
	ClassValidation    Classification = "validation"
	ClassConfiguration Classification = "configuration"
	ClassExternalTool  Classification = "external_tool"
	ClassNotFound      Classification = "not_found"
	ClassFailed        Classification = "failed"
)

// Classify maps an error to its failure class. Cancellation takes precedence
// because a canceled run usually surfaces tool failures as a side effect.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrExternalTool):
		return ClassExternalTool
	default:
		return ClassFailed
	}
}

// ExitCode converts a classification into a process exit status.
func ExitCode(err error) int {
	switch Classify(err) {
	case ClassNone:
		return 0
	case ClassValidation, ClassConfiguration:
		return 2
	case ClassCanceled:
		return 130
	default:
		return 1
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
