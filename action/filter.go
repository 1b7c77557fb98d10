package action

import (
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Filter runs after binding and validation, before the handler. Returning a
// *FilterError short-circuits the invocation with that status.
type Filter interface {
	Name() string
	Check(inv *Invocation) error
}

// FilterError is a filter refusing an invocation.
type FilterError struct {
	Filter string
	Status int
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %s", e.Filter, e.Reason)
}

type funcFilter struct {
	name string
	fn   func(inv *Invocation) error
}

func (f funcFilter) Name() string                { return f.name }
func (f funcFilter) Check(inv *Invocation) error { return f.fn(inv) }

// FilterFunc builds a named filter from fn.
func FilterFunc(name string, fn func(inv *Invocation) error) Filter {
	return funcFilter{name: name, fn: fn}
}

// ConsumesFilter refuses requests whose body media type is not listed.
type ConsumesFilter struct {
	types []string
}

// Consumes refuses requests whose body media type is not listed with 415.
// Requests without a body pass.
func Consumes(types ...string) *ConsumesFilter {
	return &ConsumesFilter{types: lowerAll(types)}
}

func (f *ConsumesFilter) Name() string { return "consumes" }

// ContentTypes returns the accepted media types.
func (f *ConsumesFilter) ContentTypes() []string {
	return slices.Clone(f.types)
}

func (f *ConsumesFilter) Check(inv *Invocation) error {
	r := inv.Request
	if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
		return nil
	}
	mt := mediaType(r)
	if !slices.Contains(f.types, mt) {
		return &FilterError{
			Filter: "consumes",
			Status: http.StatusUnsupportedMediaType,
			Reason: fmt.Sprintf("content type %q is not one of %s", mt, strings.Join(f.types, ", ")),
		}
	}
	return nil
}

// Produces refuses requests whose Accept header admits none of types with 406.
// A missing Accept header accepts everything.
func Produces(types ...string) Filter {
	offered := lowerAll(types)
	return FilterFunc("produces", func(inv *Invocation) error {
		for _, t := range offered {
			if accepts(inv.Request, t) {
				return nil
			}
		}
		return &FilterError{
			Filter: "produces",
			Status: http.StatusNotAcceptable,
			Reason: fmt.Sprintf("none of %s is acceptable", strings.Join(offered, ", ")),
		}
	})
}

// RequireHeader refuses requests without the named header with 400.
func RequireHeader(name string) Filter {
	return FilterFunc("require-header", func(inv *Invocation) error {
		if inv.Request.Header.Get(name) == "" {
			return &FilterError{
				Filter: "require-header",
				Status: http.StatusBadRequest,
				Reason: "missing " + http.CanonicalHeaderKey(name) + " header",
			}
		}
		return nil
	})
}

// accepts reports whether the Accept header admits mediaType. Ranges such as
// "text/*" and "*/*" match; a q of zero excludes.
func accepts(r *http.Request, mediaType string) bool {
	header := r.Header.Values("Accept")
	if len(header) == 0 {
		return true
	}

	typ, _, _ := strings.Cut(mediaType, "/")
	for _, line := range header {
		for _, part := range strings.Split(line, ",") {
			mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if q, err := strconv.ParseFloat(params["q"], 64); err == nil && q == 0 {
				continue
			}
			switch {
			case mt == "*/*", mt == mediaType, mt == typ+"/*":
				return true
			}
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
