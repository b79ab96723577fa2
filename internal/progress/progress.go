// Package progress reports per-clip pipeline progress.
package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter is ticked once per clip processed to completion.
type Reporter interface {
	Add(n int)
	Finish()
}

// Bar renders progress as a terminal bar.
type Bar struct {
	bar  *progressbar.ProgressBar
	done int
}

// NewBar creates a bar over total clips. A non-positive total renders a spinner.
func NewBar(w io.Writer, total int, description string) *Bar {
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("clip"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)
	return &Bar{bar: bar}
}

// Add advances the bar by n clips.
func (b *Bar) Add(n int) {
	b.done += n
	_ = b.bar.Add(n)
}

// Done returns the number of clips reported so far.
func (b *Bar) Done() int { return b.done }

// Finish completes the bar.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
}

// Nop discards progress.
type Nop struct{}

// Add implements Reporter.
func (Nop) Add(int) {}

// Finish implements Reporter.
func (Nop) Finish() {}
