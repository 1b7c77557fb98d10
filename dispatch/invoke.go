package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/mux"
	"github.com/vitalvas/routeprobe/pipeline"
)

// Dispatch builds req and invokes it against table.
func Dispatch(ctx context.Context, req Request, table *pipeline.Table, opts ...Option) ActualCall {
	r, err := req.HTTPRequest(ctx)
	if err != nil {
		return Unresolved(fmt.Sprintf("request %s could not be built: %s", req, innermost(err)))
	}
	return Invoke(r, table, opts...)
}

// Invoke selects the handler for req and runs everything up to, but not
// including, the handler body: the route's middleware chain, argument
// binding, validation and action filters. Every failure is reported as an
// unresolved call; nothing panics or returns an error. The pipeline runs on
// a copy of req; req keeps its headers and a body that can be read again.
func Invoke(req *http.Request, table *pipeline.Table, opts ...Option) (call ActualCall) {
	o := newOptions(table, opts)
	desc := req.Method + " " + req.URL.RequestURI()
	log := o.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	defer func() {
		if rec := recover(); rec != nil {
			call = Unresolved(fmt.Sprintf("%s could not be dispatched: %s", desc, innermost(panicError(rec))))
		}
		if call.IsResolved() {
			log.WithField("handler", call.Handler().String()).Debug("request resolved")
		} else {
			log.WithField("reason", call.UnresolvedReason()).Debug("request unresolved")
		}
	}()

	req, err := isolate(req)
	if err != nil {
		return Unresolved(fmt.Sprintf("%s could not be dispatched: %s", desc, innermost(err)))
	}

	sel := Match(req, table)
	if o.services != nil {
		sel.Request = sel.Request.WithContext(action.ContextWithServices(sel.Request.Context(), *o.services))
	}

	switch len(sel.Candidates) {
	case 0:
		reason := desc + " could not be matched to any route"
		if len(sel.Allowed) > 0 {
			reason += fmt.Sprintf(" (the path accepts %s)", strings.Join(sel.Allowed, ", "))
		}
		return Unresolved(reason)
	case 1:
	default:
		names := make([]string, len(sel.Candidates))
		for i, e := range sel.Candidates {
			names[i] = e.Handler.String()
		}
		return Unresolved(fmt.Sprintf("multiple handlers matched %s: %s", desc, strings.Join(names, ", ")))
	}

	entry := sel.Candidates[0]
	r, recorder := mux.WithRejectionRecorder(sel.Request)
	r = mux.WithMatch(r, sel.match)

	t := &terminal{entry: entry}
	w := httptest.NewRecorder()
	sel.match.Wrap(t).ServeHTTP(w, r)

	var fe *action.FilterError
	switch {
	case !t.reached:
		return Unresolved(blocked(desc, entry, recorder.Rejections(), w.Code))
	case errors.As(t.err, &fe):
		rej := []mux.Rejection{{Filter: fe.Filter, Status: fe.Status, Reason: fe.Reason}}
		return Unresolved(blocked(desc, entry, rej, fe.Status))
	case t.err != nil:
		return Unresolved(fmt.Sprintf("%s could not be bound to %s: %s", desc, entry.Handler, innermost(t.err)))
	}

	arguments := map[string]any{}
	validation := ValidationState{Valid: true}
	if t.inv != nil {
		arguments = t.inv.Arguments
		validation = ValidationState{Valid: t.inv.ModelState.Valid(), Errors: t.inv.ModelState.Errors()}
	}

	return Resolved(entry.Handler, sel.RouteValues, arguments, entry.Route.GetDataTokens(), validation)
}

// isolate returns a deep copy of req with its own body reader. The body is
// read once and req gets a fresh reader over the same bytes.
func isolate(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("dispatch: read body: %w", err)
	}

	reopen := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Body, _ = reopen()
	req.GetBody = reopen
	clone.Body, _ = reopen()
	clone.GetBody = reopen
	return clone, nil
}

// terminal stands in for the handler at the end of the middleware chain.
// It prepares the action's invocation and never calls the handler.
type terminal struct {
	entry   pipeline.Entry
	reached bool
	inv     *action.Invocation
	err     error
}

func (t *terminal) ServeHTTP(_ http.ResponseWriter, r *http.Request) {
	t.reached = true

	defer func() {
		if rec := recover(); rec != nil {
			t.inv = nil
			t.err = panicError(rec)
		}
	}()

	if t.entry.Action == nil {
		return
	}
	t.inv, t.err = t.entry.Action.Prepare(r)
}

func blocked(desc string, entry pipeline.Entry, rejections []mux.Rejection, status int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "request %s to %s was blocked by a declared filter", desc, entry.Handler)
	if n := len(rejections); n > 0 {
		rej := rejections[n-1]
		fmt.Fprintf(&b, " (%s answered %d: %s)", rej.Filter, rej.Status, rej.Reason)
	} else {
		fmt.Fprintf(&b, " (middleware answered %d)", status)
	}
	b.WriteString("; the request must be set up so that it passes the pipeline")
	return b.String()
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}

// innermost returns the message of the deepest wrapped error.
func innermost(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
