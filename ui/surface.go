package ui

import (
	"io"

	"instrumon/pipeline"
)

// Surface abstracts the console so alternative renderers can plug in.
// Implementations must be safe for concurrent calls from the pipeline and
// stats loops.
type Surface interface {
	pipeline.Display
	SetStatus(status Status)
	AppendSystem(line string)
	SystemWriter() io.Writer
	WaitReady()
	Stop()
	// Done is closed when the operator asks to quit.
	Done() <-chan struct{}
}

// Controller accepts settings changes; *pipeline.Pipeline satisfies it.
type Controller interface {
	Control(c pipeline.Control) bool
}
