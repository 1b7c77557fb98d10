package routeassert

import (
	"context"
	"strings"
	"testing"

	"github.com/vitalvas/routeprobe/dispatch"
	"github.com/vitalvas/routeprobe/expect"
	"github.com/vitalvas/routeprobe/pipeline"
)

// Routes dispatches req against table and reports an error on t unless it
// resolves to expected.
func Routes(t testing.TB, table *pipeline.Table, req dispatch.Request, expected *expect.ExpectedCall) bool {
	t.Helper()

	actual := dispatch.Dispatch(context.Background(), req, table)
	if err := Verify(actual, expected); err != nil {
		t.Errorf("%s: %v", req, err)
		return false
	}
	return true
}

// NotResolved dispatches req against table and reports an error on t if it
// resolves, or if the reason does not contain contains.
func NotResolved(t testing.TB, table *pipeline.Table, req dispatch.Request, contains string) bool {
	t.Helper()

	actual := dispatch.Dispatch(context.Background(), req, table)
	if actual.IsResolved() {
		t.Errorf("%s: expected no handler, but it resolved to %s", req, actual.Handler())
		return false
	}
	if !strings.Contains(actual.UnresolvedReason(), contains) {
		t.Errorf("%s: unresolved reason %q does not contain %q", req, actual.UnresolvedReason(), contains)
		return false
	}
	return true
}
