package common

import (
	"errors"
	"io"
	"sync"
)

const (
	DEFAULT_CAPPED_BUFFER_SIZE = 8 * 1024 * 1024
)

var ErrCappedBufferClosed = errors.New("buffer is closed")

// CappedBuffer is a bounded pipe between a single producer goroutine (e.g. an NDJSON encoder)
// and a single consumer (e.g. an S3 upload or a BigQuery load job reading the body).
type CappedBuffer struct {
	config       *BaseConfig
	maxSizeBytes int

	buffer          []byte
	mutex           sync.Mutex
	conditionalSync *sync.Cond

	closeOnceSync sync.Once
	closed        bool
	closeErr      error
}

func NewCappedBuffer(config *BaseConfig, maxSizeBytes int) *CappedBuffer {
	cappedBuffer := &CappedBuffer{
		config:       config,
		buffer:       make([]byte, 0, maxSizeBytes),
		maxSizeBytes: maxSizeBytes,
	}
	cappedBuffer.conditionalSync = sync.NewCond(&cappedBuffer.mutex)
	return cappedBuffer
}

// Implements io.Writer. A payload larger than the cap is written in chunks.
func (buf *CappedBuffer) Write(payload []byte) (writtenBytes int, err error) {
	for writtenBytes < len(payload) {
		n, err := buf.writeChunk(payload[writtenBytes:])
		writtenBytes += n
		if err != nil {
			return writtenBytes, err
		}
	}
	return writtenBytes, nil
}

func (buf *CappedBuffer) writeChunk(payload []byte) (int, error) {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	for len(buf.buffer) >= buf.maxSizeBytes && !buf.closed {
		LogTrace(buf.config, ">> Waiting for more space in capped buffer...")
		buf.conditionalSync.Wait() // Wait for the reader
	}

	if buf.closed {
		return 0, ErrCappedBufferClosed
	}

	chunkSize := min(len(payload), buf.maxSizeBytes-len(buf.buffer))
	buf.buffer = append(buf.buffer, payload[:chunkSize]...)
	LogTrace(buf.config, ">> Writing", chunkSize, "bytes to capped buffer...")

	buf.conditionalSync.Broadcast() // Notify the reader that new data is available

	return chunkSize, nil
}

// Implements io.Reader
func (buf *CappedBuffer) Read(payload []byte) (readBytes int, err error) {
	if len(payload) == 0 {
		return 0, nil
	}

	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	for len(buf.buffer) == 0 && !buf.closed {
		LogTrace(buf.config, "<< Waiting for more data in capped buffer...")
		buf.conditionalSync.Wait() // Wait for the writer
	}

	if len(buf.buffer) == 0 && buf.closed {
		if buf.closeErr != nil {
			return 0, buf.closeErr
		}
		return 0, io.EOF
	}

	readBytes = copy(payload, buf.buffer)
	buf.buffer = buf.buffer[readBytes:]
	LogTrace(buf.config, "<< Reading", readBytes, "/", len(payload), "bytes from capped buffer...")

	buf.conditionalSync.Broadcast() // Notify the writer that space is now available

	return readBytes, nil
}

func (buf *CappedBuffer) Close() error {
	return buf.CloseWithError(nil)
}

// The reader gets err instead of io.EOF once the remaining data is drained
func (buf *CappedBuffer) CloseWithError(err error) error {
	buf.closeOnceSync.Do(func() {
		buf.mutex.Lock()

		LogTrace(buf.config, "== Closing capped buffer...")
		buf.closed = true
		buf.closeErr = err

		buf.conditionalSync.Broadcast() // Wake up any waiting writers/readers

		buf.mutex.Unlock()
	})
	return nil
}
