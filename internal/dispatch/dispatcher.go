// Package dispatch runs a closed batch of call units through a fixed pool of
// workers.
//
// Every (subject, side) pair becomes one unit, enumerated up front onto a
// buffered queue. Workers pull units until the queue is drained: a side with
// no image is recorded as missing without touching the limiter, every other
// unit waits for a rate-limit permit, calls the OCR service and records the
// outcome. Run returns only after every unit has a recorded outcome.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

// Limiter grants permission to make one remote call.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Caller performs one OCR call and always returns a terminal outcome.
type Caller interface {
	Call(ctx context.Context, image []byte, side idcard.Side) idcard.Outcome
}

// Unit is one (subject, side) pair. Image is nil when the side is absent.
type Unit struct {
	Subject string
	Side    idcard.Side
	Image   *idcard.ImageRef
}

// Units enumerates the call units of a batch, front before back per subject.
func Units(items []idcard.WorkItem) []Unit {
	units := make([]Unit, 0, len(items)*len(idcard.Sides))
	for _, item := range items {
		for _, side := range idcard.Sides {
			units = append(units, Unit{Subject: item.Subject, Side: side, Image: item.Image(side)})
		}
	}
	return units
}

// Dispatcher owns the worker pool for one or more batches.
type Dispatcher struct {
	limiter  Limiter
	caller   Caller
	observer Observer

	// ReadFile loads image bytes; defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// New creates a Dispatcher. observer may be nil.
func New(limiter Limiter, caller Caller, observer Observer) *Dispatcher {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Dispatcher{
		limiter:  limiter,
		caller:   caller,
		observer: observer,
		ReadFile: os.ReadFile,
	}
}

// Run processes every unit of items with exactly concurrency workers and
// returns the finalized statistics. Subject keys must be unique; a batch with
// a repeated key is rejected before any call is made. Cancelling ctx does not
// abort the batch: units not yet called resolve as cancelled exceptions.
func (d *Dispatcher) Run(ctx context.Context, items []idcard.WorkItem, concurrency int) (*idcard.RunStatistics, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if err := checkSubjects(items); err != nil {
		return nil, err
	}

	agg := idcard.NewAggregator(items)
	units := Units(items)

	queue := make(chan Unit, len(units))
	for _, u := range units {
		queue <- u
	}
	close(queue)

	d.observer.BatchStarted(len(units))
	log.Info().
		Int("subjects", len(items)).
		Int("units", len(units)).
		Int("workers", concurrency).
		Msg("Dispatching OCR batch")

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for u := range queue {
				start := time.Now()
				out := d.process(ctx, worker, u)
				if err := agg.Record(u.Subject, u.Side, out); err != nil {
					log.Error().Err(err).Str("subject", u.Subject).Str("side", string(u.Side)).Msg("Failed to record outcome")
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				d.observer.UnitDone(u, out, time.Since(start))
			}
		}(i)
	}
	wg.Wait()
	d.observer.BatchFinished()

	if firstErr != nil {
		return nil, fmt.Errorf("record outcome: %w", firstErr)
	}
	if got, want := agg.Recorded(), len(units); got != want {
		return nil, fmt.Errorf("recorded %d outcomes for %d units", got, want)
	}
	return agg.Finalize()
}

// checkSubjects rejects repeated subject keys.
func checkSubjects(items []idcard.WorkItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.Subject]; dup {
			return fmt.Errorf("duplicate subject %q in batch", item.Subject)
		}
		seen[item.Subject] = struct{}{}
	}
	return nil
}

// process resolves one unit to a terminal outcome.
func (d *Dispatcher) process(ctx context.Context, worker int, u Unit) idcard.Outcome {
	if u.Image == nil {
		log.Debug().Str("subject", u.Subject).Str("side", string(u.Side)).Msg("No image for side")
		return idcard.Missing()
	}
	if ctx.Err() != nil {
		return idcard.Exception("cancelled")
	}

	data, err := d.ReadFile(u.Image.Path)
	if err != nil {
		log.Error().Err(err).Str("path", u.Image.Path).Msg("Failed to read image")
		return idcard.Exception(fmt.Sprintf("read image: %v", err))
	}

	if err := d.limiter.Acquire(ctx); err != nil {
		return idcard.Exception("cancelled")
	}

	log.Info().
		Int("worker", worker).
		Str("subject", u.Subject).
		Str("side", u.Side.Label()).
		Str("image", u.Image.Path).
		Msg("Processing image")
	out := d.caller.Call(ctx, data, u.Side)

	switch out.Kind {
	case idcard.KindSuccess:
		log.Info().Str("subject", u.Subject).Str("side", u.Side.Label()).Msg("Recognition succeeded")
	default:
		log.Warn().
			Str("subject", u.Subject).
			Str("side", u.Side.Label()).
			Str("status", out.Kind.Status()).
			Str("error", out.Error()).
			Msg("Recognition failed")
	}
	return out
}
