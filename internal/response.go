package internal

import (
	"bytes"
	"net/http"
	"strconv"
)

// Response is the response under construction. It is fully buffered: the
// transport receives it only after the pipeline has finished.
//
// Response implements http.ResponseWriter, so standard handlers and
// encoders can write into it.
type Response struct {
	header   http.Header
	body     bytes.Buffer
	status   int
	explicit bool
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

// Status returns the current status code.
func (r *Response) Status() int {
	return r.status
}

// SetStatus sets the status code and marks it as explicitly chosen.
// Explicit statuses take precedence over route defaults.
func (r *Response) SetStatus(code int) {
	r.status = code
	r.explicit = true
}

// StatusSet reports whether a stage of the pipeline chose the status.
func (r *Response) StatusSet() bool {
	return r.explicit
}

// defaultStatus sets the status without marking it explicit.
func (r *Response) defaultStatus(code int) {
	if !r.explicit {
		r.status = code
	}
}

func (r *Response) Header() http.Header {
	return r.header
}

// WriteHeader implements http.ResponseWriter.
func (r *Response) WriteHeader(code int) {
	r.SetStatus(code)
}

// Write appends p to the body.
func (r *Response) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) {
	return r.body.WriteString(s)
}

// Body returns the buffered body. The slice is valid until the next write.
func (r *Response) Body() []byte {
	return r.body.Bytes()
}

// SetBody replaces the body.
func (r *Response) SetBody(b []byte) {
	r.body.Reset()
	r.body.Write(b)
}

// Reset drops headers and body and restores status 200.
func (r *Response) Reset() {
	clear(r.header)
	r.body.Reset()
	r.status = http.StatusOK
	r.explicit = false
}

// Send copies the response to w.
func (r *Response) Send(w http.ResponseWriter) error {
	h := w.Header()
	for k, v := range r.header {
		h[k] = v
	}
	if bodyAllowed(r.status) && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(r.body.Len()))
	}
	w.WriteHeader(r.status)
	if !bodyAllowed(r.status) || r.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(r.body.Bytes())
	return err
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
