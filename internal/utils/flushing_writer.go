package utils

import (
	"io"
	"sync"
)

type flusher interface {
	Flush() error
}

// FlushingWriter wraps a writer and flushes it after every write so that
// interactive prompts appear before the program blocks on input.
type FlushingWriter struct {
	destination io.Writer
	writeGuard  sync.Mutex
}

// NewFlushingWriter wraps the provided writer. Writers that do not support
// flushing pass through unchanged; wrapping an already wrapped writer returns
// it as is.
func NewFlushingWriter(destination io.Writer) io.Writer {
	if destination == nil {
		return nil
	}
	if existingWrapper, alreadyWrapped := destination.(*FlushingWriter); alreadyWrapped {
		return existingWrapper
	}
	return &FlushingWriter{destination: destination}
}

// Write forwards the payload to the wrapped writer and flushes it when the
// writer supports flushing.
func (flushingWriter *FlushingWriter) Write(payload []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.destination == nil {
		return 0, nil
	}

	flushingWriter.writeGuard.Lock()
	defer flushingWriter.writeGuard.Unlock()

	writtenByteCount, writeError := flushingWriter.destination.Write(payload)
	if writeError != nil {
		return writtenByteCount, writeError
	}

	if flushableDestination, supportsFlush := flushingWriter.destination.(flusher); supportsFlush {
		if flushError := flushableDestination.Flush(); flushError != nil {
			return writtenByteCount, flushError
		}
	}

	return writtenByteCount, nil
}
