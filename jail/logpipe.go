package jail

import (
	"fmt"
	"io"
	"os"
)

// LogPipe is the one-way, close-on-exec child-to-parent channel used to
// serialise a child's pre-exec setup log. Generalized from
// utils/sync.go's SyncPipe (a 1-byte ready signal) into a byte-stream
// drain: the child's write end is CLOEXEC, so it closes automatically
// at execve and the parent's drain read returns EOF.
type LogPipe struct {
	read  *os.File
	write *os.File
}

// NewLogPipe creates a close-on-exec pipe.
func NewLogPipe() (*LogPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	return &LogPipe{read: r, write: w}, nil
}

// WriteFile returns the write end, to be inherited by the child.
func (p *LogPipe) WriteFile() *os.File { return p.write }

// CloseWrite closes the parent's reference to the write end; required
// after clone so the parent's drain observes EOF once the child (the
// only other holder) closes or execs.
func (p *LogPipe) CloseWrite() error { return p.write.Close() }

// Close closes both ends.
func (p *LogPipe) Close() {
	p.read.Close()
	p.write.Close()
}

// Drain reads until EOF, forwarding each line-buffered chunk to sink.
func (p *LogPipe) Drain(sink func(line string)) error {
	buf := make([]byte, 4096)
	for {
		n, err := p.read.Read(buf)
		if n > 0 {
			sink(string(buf[:n]))
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
