package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hazyhaar/dynresp/auth"
	"github.com/hazyhaar/dynresp/negotiate"
	"github.com/hazyhaar/dynresp/view"
)

// Request is the per-request context threaded through every stage. It is
// built once by the orchestrator and not modified after the handler runs.
type Request struct {
	ID         string
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Signals    negotiate.Signals
	Preference negotiate.Preference
	Principal  *auth.Principal
	Logger     *slog.Logger

	// Raw is the underlying request, for bodies and route parameters.
	Raw *http.Request
}

// Handler produces the canonical result for a request.
type Handler func(ctx context.Context, req *Request) (*view.Result, error)

// Route binds a handler to a method and pattern together with its access
// requirement.
type Route struct {
	Method   string
	Pattern  string
	Requires auth.Requirement
	Summary  string
	Handler  Handler
}

// DecodeJSON decodes the body into v. Malformed or oversized bodies come
// back as *ValidationError.
func (r *Request) DecodeJSON(v any) error {
	if r.Raw == nil || r.Raw.Body == nil || r.Raw.Body == http.NoBody {
		return &ValidationError{Errors: []FieldError{Missing("body")}}
	}
	body, err := io.ReadAll(r.Raw.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &ValidationError{Errors: []FieldError{{Loc: []string{"body"}, Msg: "Body too large", Type: "too_large"}}}
		}
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &ValidationError{Errors: []FieldError{Missing("body")}}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return &ValidationError{Errors: []FieldError{{
				Loc:  []string{"body", ute.Field},
				Msg:  "Input should be a valid " + ute.Type.String(),
				Type: "type_error",
			}}}
		}
		return &ValidationError{Errors: []FieldError{{Loc: []string{"body"}, Msg: "JSON decode error: " + err.Error(), Type: "json_invalid"}}}
	}
	return nil
}
