package common

import (
	"encoding/json"
	"io"
)

type NdjsonWriter struct {
	Writer  io.Writer
	encoder *json.Encoder
}

func NewNdjsonWriter(w io.Writer) *NdjsonWriter {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return &NdjsonWriter{Writer: w, encoder: encoder}
}

// json.Encoder terminates every value with "\n"
func (w *NdjsonWriter) Write(value interface{}) error {
	return w.encoder.Encode(value)
}

func (w *NdjsonWriter) Close() error {
	if closer, ok := w.Writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Encodes values into a capped buffer from a separate goroutine and returns the buffer to read from.
// Encoding errors surface to the reader.
func StreamNdjson[T any](config *BaseConfig, values []T, toJson func(T) interface{}) *CappedBuffer {
	cappedBuffer := NewCappedBuffer(config, DEFAULT_CAPPED_BUFFER_SIZE)

	go func() {
		ndjsonWriter := NewNdjsonWriter(cappedBuffer)
		for _, value := range values {
			if err := ndjsonWriter.Write(toJson(value)); err != nil {
				cappedBuffer.CloseWithError(err)
				return
			}
		}
		ndjsonWriter.Close()
	}()

	return cappedBuffer
}
