package dispatch

import (
	"maps"
	"net/http"

	"github.com/vitalvas/routeprobe/mux"
	"github.com/vitalvas/routeprobe/pipeline"
)

// Selection is the outcome of route matching for one request.
type Selection struct {
	// Request is the request as the router sees it: path cleaned and the
	// table's services installed.
	Request *http.Request
	// Candidates holds the selected entry, every entry tied for the best
	// rank, or nothing.
	Candidates []pipeline.Entry
	// Allowed lists the methods the path accepts when only the method
	// failed to match.
	Allowed []string
	// RouteValues is set when exactly one entry was selected.
	RouteValues map[string]string
	// Err is nil, mux.ErrNotFound, mux.ErrMethodMismatch or
	// mux.ErrAmbiguousRoute.
	Err error

	match *mux.RouteMatch
}

// Match runs the table's router against req without dispatching it. Zero
// and several candidates are ordinary outcomes.
func Match(req *http.Request, table *pipeline.Table) Selection {
	router := table.Router()
	r := table.WithServices(router.Prepare(req))

	m := &mux.RouteMatch{}
	sel := Selection{Request: r, match: m}

	if router.Match(r, m) {
		entry := entryFor(table, m.Route)
		sel.Candidates = []pipeline.Entry{entry}
		sel.RouteValues = routeValues(r, m, entry)
		return sel
	}

	sel.Err = m.MatchErr
	switch m.MatchErr {
	case mux.ErrAmbiguousRoute:
		for _, route := range m.Candidates {
			sel.Candidates = append(sel.Candidates, entryFor(table, route))
		}
	case mux.ErrMethodMismatch:
		sel.Allowed = router.AllowedMethods(r)
	}
	return sel
}

func entryFor(table *pipeline.Table, route *mux.Route) pipeline.Entry {
	if e, ok := table.EntryFor(route); ok {
		return e
	}
	return pipeline.Describe(route)
}

// routeValues merges, lowest precedence first, route defaults, the first
// value of each query key, route variables and the handler's fixed values.
func routeValues(r *http.Request, m *mux.RouteMatch, entry pipeline.Entry) map[string]string {
	out := make(map[string]string)
	maps.Copy(out, m.Route.GetDefaults())
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	maps.Copy(out, m.Vars)

	if entry.Action != nil {
		maps.Copy(out, entry.Action.RouteValues())
		return out
	}
	if entry.Handler.Controller != "" {
		out["controller"] = entry.Handler.Controller
	}
	if entry.Handler.Action != "" {
		out["action"] = entry.Handler.Action
	}
	return out
}
