package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/netresearch/zrunner/core"
)

// ProgressIndicator shows a spinner while a run is in progress. When the
// output is not a terminal it logs the start and end of the run instead.
type ProgressIndicator struct {
	logger     core.Logger
	writer     io.Writer
	message    string
	done       chan struct{}
	mu         sync.Mutex
	isTerminal bool
	ticker     *time.Ticker
	started    bool
}

// NewProgressIndicator draws on f when it is a terminal.
func NewProgressIndicator(logger core.Logger, f *os.File, message string) *ProgressIndicator {
	return &ProgressIndicator{
		logger:     logger,
		writer:     f,
		message:    message,
		done:       make(chan struct{}),
		isTerminal: term.IsTerminal(int(f.Fd())),
	}
}

// Start begins displaying the progress indicator
func (p *ProgressIndicator) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	if !p.isTerminal {
		p.logger.Noticef("%s...", p.message)
		return
	}

	p.ticker = time.NewTicker(100 * time.Millisecond)
	go p.animate(p.ticker.C)
}

// Stop clears the spinner and reports resultMsg.
func (p *ProgressIndicator) Stop(success bool, resultMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.started = false

	select {
	case <-p.done:
	default:
		close(p.done)
	}

	if p.ticker != nil {
		p.ticker.Stop()
	}

	if !p.isTerminal {
		if success {
			p.logger.Noticef("%s", resultMsg)
		} else {
			p.logger.Errorf("%s", resultMsg)
		}
		return
	}

	fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", len(p.message)+10))
}

func (p *ProgressIndicator) animate(tickerC <-chan time.Time) {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	i := 0

	for {
		select {
		case <-p.done:
			return
		case <-tickerC:
			p.mu.Lock()
			fmt.Fprintf(p.writer, "\r%s %s", frames[i], p.message)
			p.mu.Unlock()
			i = (i + 1) % len(frames)
		}
	}
}
