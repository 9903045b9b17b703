// Package weberr decorates errors with what the HTTP boundary needs to answer
// them: a response body with its status, and extra fields for the log line.
// Decorations survive fmt.Errorf wrapping.
package weberr

import (
	"errors"
	"net/http"
)

type Opt func(error) error

func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

func WithResponse(body any, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

func WithFields(fields map[string]any) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}

type responseError struct {
	error
	body   any
	status int
}

func (e *responseError) Unwrap() error { return e.error }

type fieldsError struct {
	error
	fields map[string]any
}

func (e *fieldsError) Unwrap() error { return e.error }

// Response returns the outermost response attached to err.
func Response(err error) (body any, status int, ok bool) {
	var re *responseError
	if !errors.As(err, &re) {
		return nil, 0, false
	}
	return re.body, re.status, true
}

// Status is the status Response would answer with, or 500 when err carries
// no response.
func Status(err error) int {
	if _, status, ok := Response(err); ok {
		return status
	}
	return http.StatusInternalServerError
}

// Fields merges the fields of every layer of err. Outer layers win on
// conflicting keys.
func Fields(err error) (map[string]any, bool) {
	var merged map[string]any
	for e := err; e != nil; e = errors.Unwrap(e) {
		fe, ok := e.(*fieldsError)
		if !ok {
			continue
		}
		if merged == nil {
			merged = make(map[string]any, len(fe.fields))
		}
		for k, v := range fe.fields {
			if _, set := merged[k]; !set {
				merged[k] = v
			}
		}
	}
	return merged, merged != nil
}
