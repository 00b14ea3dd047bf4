package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/fpang/idcard-ocr/internal/dispatch"
	"github.com/fpang/idcard-ocr/internal/idcard"
)

// ProgressObserver renders a progress bar over the call units of a batch.
type ProgressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar

	mu       sync.Mutex
	failures int
}

// NewProgressObserver returns an observer drawing to w (usually os.Stderr).
func NewProgressObserver(w io.Writer) *ProgressObserver {
	return &ProgressObserver{w: w}
}

var _ dispatch.Observer = (*ProgressObserver)(nil)

func (p *ProgressObserver) BatchStarted(units int) {
	p.bar = progressbar.NewOptions(units,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Recognizing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *ProgressObserver) UnitDone(u dispatch.Unit, out idcard.Outcome, _ time.Duration) {
	p.mu.Lock()
	if out.Kind == idcard.KindAPIError || out.Kind == idcard.KindException {
		p.failures++
	}
	failures := p.failures
	p.mu.Unlock()

	if failures > 0 {
		p.bar.Describe(fmt.Sprintf("Recognizing (%d failed)", failures))
	}
	_ = p.bar.Add(1)
}

func (p *ProgressObserver) BatchFinished() {
	_ = p.bar.Finish()
}

// Failures returns the number of failed calls seen so far.
func (p *ProgressObserver) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
