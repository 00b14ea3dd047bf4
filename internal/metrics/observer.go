package metrics

import (
	"time"

	"github.com/fpang/idcard-ocr/internal/dispatch"
	"github.com/fpang/idcard-ocr/internal/idcard"
)

// Namespace groups every metric emitted by the OCR batch.
const Namespace = "IdCardOcr"

// CallObserver emits one EMF line per resolved call unit and one per batch.
type CallObserver struct {
	sink    *Sink
	runID   string
	started time.Time
	units   int
}

// NewCallObserver returns a dispatch observer writing to sink. runID is
// attached to every line as a property.
func NewCallObserver(sink *Sink, runID string) *CallObserver {
	return &CallObserver{sink: sink, runID: runID}
}

var _ dispatch.Observer = (*CallObserver)(nil)

// BatchStarted is called before any worker starts, so no locking is needed.
func (o *CallObserver) BatchStarted(units int) {
	o.started = o.sink.now()
	o.units = units
}

// UnitDone records latency and attempt count. Missing sides are counted but
// carry no latency since no call was made.
func (o *CallObserver) UnitDone(u dispatch.Unit, out idcard.Outcome, elapsed time.Duration) {
	rec := o.sink.New(Namespace).
		Dimension("Outcome", out.Kind.Status()).
		Dimension("Side", string(u.Side)).
		Count("OcrUnits").
		Property("subject", u.Subject)
	if o.runID != "" {
		rec.Property("runId", o.runID)
	}
	if out.Kind != idcard.KindMissing {
		rec.Metric("OcrCallMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
			Metric("OcrAttempts", float64(out.Attempts), UnitCount)
		if out.Compressed {
			rec.Count("OcrCompressed")
		}
	}
	if out.Code != "" {
		rec.Property("errorCode", out.Code)
	}
	rec.Flush()
}

// BatchFinished records total batch duration.
func (o *CallObserver) BatchFinished() {
	rec := o.sink.New(Namespace).
		Dimension("Operation", "batch").
		Metric("BatchMs", float64(o.sink.now().Sub(o.started).Milliseconds()), UnitMilliseconds).
		Metric("BatchUnits", float64(o.units), UnitCount)
	if o.runID != "" {
		rec.Property("runId", o.runID)
	}
	rec.Flush()
}
