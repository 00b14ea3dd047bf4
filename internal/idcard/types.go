// Package idcard holds the batch data model (subjects, sides, outcomes) and the
// Aggregator that folds per-side outcomes into run statistics.
package idcard

import (
	"fmt"
	"time"
)

// Side identifies which face of an identity card an image shows.
type Side string

const (
	Front Side = "FRONT"
	Back  Side = "BACK"
)

// Sides lists both card sides in processing order.
var Sides = [...]Side{Front, Back}

// Label returns the lower-case side name used in logs.
func (s Side) Label() string {
	switch s {
	case Front:
		return "front"
	case Back:
		return "back"
	}
	return string(s)
}

// ImageRef points at one side's image on disk. It is read-only to the pipeline.
type ImageRef struct {
	Path string
	Side Side

	// CapturedAt and Camera come from the EXIF probe when the source carries them.
	CapturedAt time.Time
	Camera     string
}

// WorkItem is one subject with up to two images. Built once before dispatch and
// never mutated afterwards.
type WorkItem struct {
	Subject string
	Front   *ImageRef
	Back    *ImageRef
}

// Image returns the reference for the given side, or nil when absent.
func (w WorkItem) Image(side Side) *ImageRef {
	if side == Front {
		return w.Front
	}
	return w.Back
}

// OutcomeKind tags the Outcome variant.
type OutcomeKind int

const (
	// KindMissing means no image exists for the side. No remote call is made.
	KindMissing OutcomeKind = iota
	KindSuccess
	KindAPIError
	KindException
)

// Status returns the per-side status string written to reports.
func (k OutcomeKind) Status() string {
	switch k {
	case KindSuccess:
		return "SUCCESS"
	case KindAPIError:
		return "ERROR"
	case KindException:
		return "EXCEPTION"
	default:
		return "MISSING"
	}
}

func (k OutcomeKind) String() string { return k.Status() }

// Outcome is the terminal result of one call unit. Only the fields matching Kind
// are populated.
type Outcome struct {
	Kind OutcomeKind

	// Fields holds extracted values keyed by report column (name, gender, ...).
	Fields map[string]string

	// Code and Message carry the remote error for KindAPIError; Message alone
	// describes a KindException.
	Code    string
	Message string

	// Attempts is the number of HTTP requests made for this unit.
	Attempts int
	// Compressed is true when the payload was re-encoded to fit the size ceiling.
	Compressed bool
}

// Success builds a successful outcome.
func Success(fields map[string]string) Outcome {
	return Outcome{Kind: KindSuccess, Fields: fields}
}

// APIError builds a remote rejection outcome.
func APIError(code, message string) Outcome {
	return Outcome{Kind: KindAPIError, Code: code, Message: message}
}

// Exception builds a transport/encoding failure outcome.
func Exception(message string) Outcome {
	return Outcome{Kind: KindException, Message: message}
}

// Missing builds the outcome for a side without an image.
func Missing() Outcome {
	return Outcome{Kind: KindMissing}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// Error returns the ledger text for a failed outcome, "" otherwise.
func (o Outcome) Error() string {
	switch o.Kind {
	case KindAPIError:
		return fmt.Sprintf("%s: %s", o.Code, o.Message)
	case KindException:
		return o.Message
	}
	return ""
}

// OverallStatus combines the two side outcomes of a subject.
type OverallStatus int

const (
	BothSuccess OverallStatus = iota
	FrontOnly
	BackOnly
	BothFailed
)

// Label returns the bilingual status label used in reports.
func (s OverallStatus) Label() string {
	switch s {
	case BothSuccess:
		return "✓ 成功 (SUCCESS)"
	case FrontOnly:
		return "⚠ 仅正面成功 (Front Only)"
	case BackOnly:
		return "⚠ 仅背面成功 (Back Only)"
	default:
		return "✗ 失败 (FAILED)"
	}
}

func (s OverallStatus) String() string {
	switch s {
	case BothSuccess:
		return "BothSuccess"
	case FrontOnly:
		return "FrontOnly"
	case BackOnly:
		return "BackOnly"
	default:
		return "BothFailed"
	}
}

// Partial reports whether exactly one side succeeded.
func (s OverallStatus) Partial() bool { return s == FrontOnly || s == BackOnly }

// Combine derives the overall status from the two side outcomes.
func Combine(front, back Outcome) OverallStatus {
	switch {
	case front.OK() && back.OK():
		return BothSuccess
	case front.OK():
		return FrontOnly
	case back.OK():
		return BackOnly
	default:
		return BothFailed
	}
}

// SubjectResult is the per-subject view produced by Finalize. Status is always
// derived from Front and Back.
type SubjectResult struct {
	Subject    string
	FrontImage string
	BackImage  string
	Front      Outcome
	Back       Outcome
	Status     OverallStatus
}

// Outcome returns the outcome for the given side.
func (r SubjectResult) Outcome(side Side) Outcome {
	if side == Front {
		return r.Front
	}
	return r.Back
}

// Field looks up an extracted value from whichever side produced it.
func (r SubjectResult) Field(name string) string {
	if v, ok := r.Front.Fields[name]; ok {
		return v
	}
	return r.Back.Fields[name]
}
