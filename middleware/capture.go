package middleware

import (
	"bytes"
	"net/http"
)

// captureWriter buffers the protected handler's entire response so that
// settlement can run after the handler has produced its result but before
// any byte reaches the caller, leaving room to attach the receipt header.
type captureWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header)}
}

func (c *captureWriter) Header() http.Header {
	return c.header
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(b)
}

// Status returns the status the handler committed, defaulting to 200 when
// the handler wrote nothing explicit.
func (c *captureWriter) Status() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// flushTo replays the captured response onto the real writer.
func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for key, values := range c.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(c.Status())
	_, _ = w.Write(c.body.Bytes())
}
