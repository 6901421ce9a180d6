// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"strings"
	"sync"
)

// lineWriter accumulates everything written to it and hands complete lines
// to an optional handler as they arrive.
type lineWriter struct {
	mu      sync.Mutex
	all     bytes.Buffer
	pending []byte
	handler LineHandler
}

func newLineWriter(handler LineHandler) *lineWriter {
	return &lineWriter{handler: handler}
}

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.all.Write(p)
	if w.handler == nil {
		return len(p), nil
	}

	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(string(w.pending[:idx]), "\r")
		w.pending = w.pending[idx+1:]
		w.handler(line)
	}
	return len(p), nil
}

// flush delivers a trailing line that had no newline.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handler != nil && len(w.pending) > 0 {
		line := strings.TrimSuffix(string(w.pending), "\r")
		w.pending = nil
		w.handler(line)
	}
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.all.String()
}
