package workflow

import (
	"context"
	"time"
)

// DefaultImageStatus is shown, one line per interval, while an image is
// being diagnosed.
var DefaultImageStatus = []string{
	"Analyzing your crop image...",
	"Running ImageRAG and classification...",
	"Consulting disease detection specialist...",
	"Analysis complete! Preparing response...",
}

// DefaultSelectionStatus is shown while details for a picked candidate load.
var DefaultSelectionStatus = []string{
	"Looking up the selected disease...",
	"Gathering treatment and prevention guidance...",
	"Preparing response...",
}

const DefaultStatusInterval = 3 * time.Second

// startStatus records the first message right away and appends the rest one
// per interval until ctx is done or the list runs out. The returned stop
// cancels the producer and waits for it, so nothing is appended after stop
// returns.
func (c *Controller) startStatus(ctx context.Context, gen uint64, messages []string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	if len(messages) > 0 {
		c.emitStatus(gen, messages[0])
	}

	go func() {
		defer close(done)
		if len(messages) < 2 {
			return
		}
		ticker := time.NewTicker(c.opts.StatusInterval)
		defer ticker.Stop()

		for _, msg := range messages[1:] {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			c.emitStatus(gen, msg)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// emitStatus records msg only while gen is still the current analysis.
func (c *Controller) emitStatus(gen uint64, msg string) {
	c.mu.Lock()
	current := gen == c.generation
	if current {
		c.state.Status.Append(msg)
	}
	c.mu.Unlock()

	if current && c.opts.OnStatus != nil {
		c.opts.OnStatus(msg)
	}
}
