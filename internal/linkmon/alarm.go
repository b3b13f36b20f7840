package linkmon

import (
	"io"
	"os"
	"sync"
)

// Alarm raises a local audible alert when a link first stops answering.
type Alarm interface {
	Sound()
}

// NopAlarm stays silent.
type NopAlarm struct{}

func (NopAlarm) Sound() {}

// TerminalBell writes the BEL control character to a terminal.
type TerminalBell struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalBell rings on out, or on stderr when out is nil.
func NewTerminalBell(out io.Writer) *TerminalBell {
	if out == nil {
		out = os.Stderr
	}
	return &TerminalBell{out: out}
}

func (b *TerminalBell) Sound() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.out.Write([]byte{'\a'})
}
