// Package progress renders a replay progress indicator. It is purely
// observational: errors are swallowed and it never influences ordering or
// timing.
package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter tracks dispatched messages against the precomputed total.
type Reporter struct {
	bar *progressbar.ProgressBar
}

// New builds a reporter for total messages writing to out.
func New(total int, out io.Writer) *Reporter {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("replaying"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
	return &Reporter{bar: bar}
}

// Add advances the counter by n.
func (r *Reporter) Add(n int) {
	_ = r.bar.Add(n)
}

// Finish completes the bar.
func (r *Reporter) Finish() {
	_ = r.bar.Finish()
}
