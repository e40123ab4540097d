package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/PaesslerAG/jsonpath"
)

// Kind classifies API failures.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindAuth
	KindValidation
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindBusiness:
		return "business"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every Client method. Detail is the server's message,
// kept verbatim.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrTransport  = &Error{Kind: KindTransport}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrValidation = &Error{Kind: KindValidation}
	ErrBusiness   = &Error{Kind: KindBusiness}
)

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s error: HTTP %d", e.Kind, e.Status)
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Status != 0 || t.Detail != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Invalid builds a client side validation error.
func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// Detail returns the server detail carried by err, if any.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

func statusKind(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusUnprocessableEntity:
		return KindValidation
	}
	return KindBusiness
}

// detailPaths are tried in order. The first covers validation error arrays.
var detailPaths = []string{"$.detail[0].msg", "$.detail"}

func errorFromResponse(status int, body []byte) *Error {
	return &Error{
		Kind:   statusKind(status),
		Status: status,
		Detail: extractDetail(body),
	}
}

func extractDetail(body []byte) string {
	var jobj interface{}
	if err := json.Unmarshal(body, &jobj); err != nil {
		return ""
	}
	for _, path := range detailPaths {
		jval, err := jsonpath.Get(path, jobj)
		if err != nil {
			continue
		}
		if jlist, ok := jval.([]interface{}); ok && len(jlist) > 0 {
			jval = jlist[0]
		}
		if s, ok := jval.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
