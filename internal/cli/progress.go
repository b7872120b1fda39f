package cli

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rmitchellscott/chatsnap/internal/orchestrator"
)

// progressBar renders orchestrator events as a terminal progress bar.
type progressBar struct {
	container *mpb.Progress
	bar       *mpb.Bar
	state     atomic.Value // string
}

func newProgressBar(w io.Writer, name string) *progressBar {
	pb := &progressBar{
		container: mpb.New(
			mpb.WithOutput(w),
			mpb.WithWidth(40),
			mpb.WithRefreshRate(120*time.Millisecond),
		),
	}
	pb.state.Store(string(orchestrator.StateIdle))

	pb.bar = pb.container.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.Any(func(decor.Statistics) string {
				return pb.state.Load().(string)
			}, decor.WC{W: 11, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.OnAbort(decor.Percentage(decor.WCSyncSpace), "failed"),
		),
	)
	return pb
}

// Observe is an orchestrator.Observer.
func (pb *progressBar) Observe(e orchestrator.Event) {
	if e.State == orchestrator.StateIdle {
		return
	}
	pb.state.Store(string(e.State))
	switch e.State {
	case orchestrator.StateFailed:
		pb.bar.Abort(false)
	default:
		pb.bar.SetCurrent(int64(e.Progress.Percent))
	}
}

// Wait flushes the bar. An export that ended before completing it is shown
// as aborted.
func (pb *progressBar) Wait() {
	if !pb.bar.Completed() {
		pb.bar.Abort(false)
	}
	pb.container.Wait()
}
