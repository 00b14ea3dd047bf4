package dispatch

import (
	"time"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// Observer receives progress events. Implementations must be safe for
// concurrent use and must not block; they never influence dispatch.
type Observer interface {
	BatchStarted(units int)
	UnitDone(u Unit, out idcard.Outcome, elapsed time.Duration)
	BatchFinished()
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) BatchStarted(int) {}
func (NopObserver) UnitDone(Unit, idcard.Outcome, time.Duration) {}
func (NopObserver) BatchFinished() {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) BatchStarted(units int) {
	for _, obs := range o {
		obs.BatchStarted(units)
	}
}

func (o Observers) UnitDone(u Unit, out idcard.Outcome, elapsed time.Duration) {
	for _, obs := range o {
		obs.UnitDone(u, out, elapsed)
	}
}

func (o Observers) BatchFinished() {
	for _, obs := range o {
		obs.BatchFinished()
	}
}
