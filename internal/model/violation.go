package model

import "time"

// ViolationType is a pre-classified proctoring signal reported by the client.
type ViolationType string

const (
	ViolationFaceMissing          ViolationType = "face_missing"
	ViolationEyeMovement          ViolationType = "eye_movement"
	ViolationHeadMovement         ViolationType = "head_movement"
	ViolationTabSwitch            ViolationType = "tab_switch"
	ViolationScreenMinimize       ViolationType = "screen_minimize"
	ViolationFullscreenExit       ViolationType = "fullscreen_exit"
	ViolationCopyPasteAttempt     ViolationType = "copy_paste_attempt"
	ViolationRightClickAttempt    ViolationType = "right_click_attempt"
	ViolationScreenCaptureAttempt ViolationType = "screen_capture_attempt"
)

// ViolationTypes is the closed set of accepted violation types.
var ViolationTypes = []ViolationType{
	ViolationFaceMissing,
	ViolationEyeMovement,
	ViolationHeadMovement,
	ViolationTabSwitch,
	ViolationScreenMinimize,
	ViolationFullscreenExit,
	ViolationCopyPasteAttempt,
	ViolationRightClickAttempt,
	ViolationScreenCaptureAttempt,
}

// Severity of a violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Violation is an append-only proctoring record on an attempt.
type Violation struct {
	Type      ViolationType `json:"type"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}
