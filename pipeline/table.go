package pipeline

import (
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/mux"
)

// Constraint is one condition a route places on a key. Pattern constraints
// hold a regular expression, literal constraints a fixed value.
type Constraint struct {
	Key     string
	Value   string
	Pattern bool
}

func (c Constraint) String() string {
	if c.Pattern {
		return fmt.Sprintf("%s~%s", c.Key, c.Value)
	}
	return fmt.Sprintf("%s=%s", c.Key, c.Value)
}

// Entry describes one route of the table.
type Entry struct {
	Route *mux.Route
	// Name is the route name, if any.
	Name string
	// Template is the full path template; Prefix marks prefix routes.
	Template string
	Prefix   bool
	Host     string
	Methods  []string
	// Constraints lists explicit variable patterns in template order, then
	// header values, then the action's fixed route values.
	Constraints []Constraint
	Handler     action.Identity
	// Action is set when the route handler is an *action.Action.
	Action      *action.Action
	Order       int
	Specificity mux.Specificity
	// Stage is the index of the stage that contributed the route.
	Stage int
}

// Table is an assembled, read-only route table.
type Table struct {
	root     *mux.Router
	entries  []Entry
	byRoute  map[*mux.Route]int
	stages   []Stage
	services action.Services
	logger   logrus.FieldLogger
}

func newTable(b *Builder) (*Table, error) {
	t := &Table{
		root:     b.root,
		byRoute:  make(map[*mux.Route]int),
		stages:   b.stages,
		services: b.opts.services,
		logger:   b.opts.logger,
	}

	for _, st := range b.stages {
		if st.router == nil {
			continue
		}
		for _, route := range leafRoutes(st.router) {
			if err := route.GetError(); err != nil {
				return nil, fmt.Errorf("pipeline: stage %d (%s): %w", st.Index, st.Name, err)
			}
			e := newEntry(route, st.Index)
			if e.Action != nil {
				if err := e.Action.Err(); err != nil {
					return nil, fmt.Errorf("pipeline: stage %d (%s): %w", st.Index, st.Name, err)
				}
			}
			t.byRoute[route] = len(t.entries)
			t.entries = append(t.entries, e)
		}
	}

	t.logger.WithFields(logrus.Fields{
		"stages": len(t.stages),
		"routes": len(t.entries),
	}).Debug("route table assembled")

	return t, nil
}

func newEntry(route *mux.Route, stage int) Entry {
	e := Entry{
		Route:       route,
		Name:        route.GetName(),
		Prefix:      route.IsPathPrefix(),
		Order:       route.GetOrder(),
		Specificity: route.Specificity(),
		Stage:       stage,
	}
	e.Template, _ = route.GetPathTemplate()
	e.Host, _ = route.GetHostTemplate()
	e.Methods, _ = route.GetMethods()

	h := route.GetHandler()
	e.Handler = action.IdentityOf(h)
	if a, ok := h.(*action.Action); ok {
		e.Action = a
	}

	patterns := route.GetVarPatterns()
	names, _ := route.GetVarNames()
	for _, name := range names {
		if p := patterns[name]; p != "" {
			e.Constraints = append(e.Constraints, Constraint{Key: name, Value: p, Pattern: true})
		}
	}

	headers := route.GetHeaders()
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		e.Constraints = append(e.Constraints, Constraint{Key: http.CanonicalHeaderKey(k), Value: headers[k]})
	}

	if e.Action != nil {
		fixed := e.Action.RouteValues()
		for _, k := range slices.Sorted(maps.Keys(fixed)) {
			e.Constraints = append(e.Constraints, Constraint{Key: k, Value: fixed[k]})
		}
	}

	return e
}

// Router returns the root router.
func (t *Table) Router() *mux.Router {
	return t.root
}

// Entries returns a copy of the entries in registration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Stages returns a copy of the stages in registration order. Opaque stages
// with zero routes show components that were silently skipped.
func (t *Table) Stages() []Stage {
	out := make([]Stage, len(t.stages))
	copy(out, t.stages)
	return out
}

// Services returns the binder and validator actions resolve.
func (t *Table) Services() action.Services {
	return t.services
}

// Logger returns the logger the table was assembled with.
func (t *Table) Logger() logrus.FieldLogger {
	return t.logger
}

// Describe builds an entry for a route that is not part of any table, such
// as one added to the router after assembly. Its Stage is -1.
func Describe(route *mux.Route) Entry {
	return newEntry(route, -1)
}

// EntryFor returns the entry of route.
func (t *Table) EntryFor(route *mux.Route) (Entry, bool) {
	i, ok := t.byRoute[route]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Lookup returns the entries whose handler is called name. Both the
// effective identity ("Items.Show") and the source symbol of an action
// ("itemStore.Show") are accepted, as is a bare action name when it is
// unique to one controller.
func (t *Table) Lookup(name string) []Entry {
	var exact, bare []Entry
	for _, e := range t.entries {
		switch {
		case e.Handler.String() == name:
			exact = append(exact, e)
		case e.Action != nil && e.Action.Symbol().String() == name:
			exact = append(exact, e)
		case e.Handler.Action == name:
			bare = append(bare, e)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	controllers := make(map[string]struct{})
	for _, e := range bare {
		controllers[e.Handler.Controller] = struct{}{}
	}
	if len(controllers) == 1 {
		return bare
	}
	return nil
}

// LookupFunc returns the entries whose handler was built from fn, a
// function or method value.
func (t *Table) LookupFunc(fn any) []Entry {
	sym := action.FuncIdentity(fn)
	if sym.IsZero() {
		return nil
	}

	var out []Entry
	for _, e := range t.entries {
		switch {
		case e.Action != nil && !e.Action.Declared() && e.Action.Symbol().Equal(sym) && e.Action.Symbol().Package == sym.Package:
			out = append(out, e)
		case e.Action == nil && e.Handler.Equal(sym) && e.Handler.Package == sym.Package:
			out = append(out, e)
		}
	}
	return out
}

// Handler returns the root router with the table's services installed on
// every request.
func (t *Table) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.root.ServeHTTP(w, t.WithServices(r))
	})
}

// WithServices returns r carrying the table's services.
func (t *Table) WithServices(r *http.Request) *http.Request {
	return r.WithContext(action.ContextWithServices(r.Context(), t.services))
}
