package manifest

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/dispatch"
	"github.com/vitalvas/routeprobe/expect"
	"github.com/vitalvas/routeprobe/pipeline"
	"github.com/vitalvas/routeprobe/routeassert"
)

// Result is the outcome of one case.
type Result struct {
	Case    string
	Passed  bool
	Message string
	Call    dispatch.ActualCall
}

// DispatchRequest returns the request the case describes.
func (r Request) DispatchRequest() dispatch.Request {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req := dispatch.NewRequest(method, r.URL)

	for _, k := range slices.Sorted(maps.Keys(r.Headers)) {
		req = req.WithHeader(k, r.Headers[k])
	}
	for _, k := range slices.Sorted(maps.Keys(r.Query)) {
		req = req.WithQuery(k, r.Query[k]...)
	}
	if len(r.Cookies) > 0 {
		req = req.WithCookies(r.Cookies)
	}

	switch {
	case len(r.Form) > 0:
		req = req.WithForm(url.Values(r.Form))
	case r.JSON != nil:
		req = req.WithJSON(r.JSON)
	case r.Body != "":
		ct := r.ContentType
		if ct == "" {
			ct = "text/plain"
		}
		req = req.WithBody(ct, []byte(r.Body))
	}

	return req
}

// Verify dispatches the case's request against table and checks the
// outcome.
func (c Case) Verify(ctx context.Context, table *pipeline.Table) Result {
	res := Result{Case: c.Name}
	if err := ctx.Err(); err != nil {
		res.Message = "not run: " + err.Error()
		return res
	}

	req := c.Request.DispatchRequest()
	res.Call = dispatch.Dispatch(ctx, req, table)

	if err := c.check(table, res.Call); err != nil {
		res.Message = err.Error()
		return res
	}
	res.Passed = true
	return res
}

func (c Case) check(table *pipeline.Table, actual dispatch.ActualCall) error {
	if c.Unresolved != nil {
		if actual.IsResolved() {
			return fmt.Errorf("expected no handler, but the request resolved to %s", actual.Handler())
		}
		if !strings.Contains(actual.UnresolvedReason(), *c.Unresolved) {
			return fmt.Errorf("unresolved reason %q does not contain %q", actual.UnresolvedReason(), *c.Unresolved)
		}
		return nil
	}

	expected, err := expect.Parse(table, c.Expect)
	if err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(c.RouteValues)) {
		expected = expected.WithRouteValue(k, c.RouteValues[k])
	}

	if err := routeassert.Verify(actual, expected); err != nil {
		return err
	}
	if len(c.DataTokens) > 0 {
		if err := routeassert.DataTokens(actual, c.DataTokens); err != nil {
			return err
		}
	}

	errs := make([]action.FieldError, len(c.Errors))
	for i, e := range c.Errors {
		errs[i] = action.FieldError{Key: e.Key, Message: e.Message}
	}
	switch {
	case c.Valid != nil:
		return routeassert.Validation(actual, *c.Valid, errs...)
	case len(errs) > 0:
		return routeassert.Validation(actual, false, errs...)
	}
	return nil
}

// Run verifies every case in order. With failFast it stops after the
// first failure.
func (m *Manifest) Run(ctx context.Context, table *pipeline.Table, failFast bool) []Result {
	results := make([]Result, 0, len(m.Cases))
	for _, c := range m.Cases {
		res := c.Verify(ctx, table)
		results = append(results, res)
		if failFast && !res.Passed {
			break
		}
	}
	return results
}
