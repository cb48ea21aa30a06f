package service

import (
	"fmt"

	"github.com/proctorhub/assessment-backend/internal/model"
)

const criticalViolationMessage = "Assessment terminated due to tab switch/minimize"

// criticalViolations terminate an attempt immediately. Every other known
// type is a warning.
var criticalViolations = map[model.ViolationType]struct{}{
	model.ViolationTabSwitch:      {},
	model.ViolationScreenMinimize: {},
}

var knownViolations = func() map[model.ViolationType]struct{} {
	m := make(map[model.ViolationType]struct{}, len(model.ViolationTypes))
	for _, t := range model.ViolationTypes {
		m[t] = struct{}{}
	}
	return m
}()

// ViolationVerdict is the policy decision for one violation type.
type ViolationVerdict struct {
	Severity model.Severity
	Message  string
}

// Critical reports whether the violation ends the attempt on its own.
func (v ViolationVerdict) Critical() bool {
	return v.Severity == model.SeverityCritical
}

// ClassifyViolation returns the severity and message bound to t.
func ClassifyViolation(t model.ViolationType) (ViolationVerdict, error) {
	if _, ok := knownViolations[t]; !ok {
		return ViolationVerdict{}, fmt.Errorf("%w: %q", ErrUnknownViolation, t)
	}
	if _, ok := criticalViolations[t]; ok {
		return ViolationVerdict{Severity: model.SeverityCritical, Message: criticalViolationMessage}, nil
	}
	return ViolationVerdict{
		Severity: model.SeverityWarning,
		Message:  fmt.Sprintf("Warning issued for %s", t),
	}, nil
}
