package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/mux"
)

// ErrNoConfigure is returned when assembly is given no configuration
// callback.
var ErrNoConfigure = errors.New("pipeline: configure callback is nil")

// RouteRegistrar is a component that registers routes on a router.
type RouteRegistrar interface {
	RegisterRoutes(r *mux.Router)
}

// RegistrarFunc adapts a function to RouteRegistrar.
type RegistrarFunc func(r *mux.Router)

// RegisterRoutes implements RouteRegistrar.
func (f RegistrarFunc) RegisterRoutes(r *mux.Router) {
	f(r)
}

// Introspector extracts routes from a component the builder does not know
// into r. It reports false for components it does not understand.
type Introspector func(component any, r *mux.Router) (bool, error)

// StageKind classifies a pipeline stage.
type StageKind string

const (
	KindRegistrar    StageKind = "registrar"
	KindRouter       StageKind = "router"
	KindMiddleware   StageKind = "middleware"
	KindIntrospected StageKind = "introspected"
	KindOpaque       StageKind = "opaque"
)

// Stage is one component passed to Builder.Use.
type Stage struct {
	Index  int
	Name   string
	Kind   StageKind
	Routes int
	// Err is set when an introspector failed on the component. The stage
	// then contributes no routes.
	Err error

	router *mux.Router
}

// Builder records pipeline components in registration order. Middleware
// wraps every route registered after it and none registered before.
type Builder struct {
	root    *mux.Router
	current *mux.Router
	stages  []Stage
	opts    *options
}

func newBuilder(opts *options) *Builder {
	root := mux.NewRouter()
	return &Builder{root: root, current: root, opts: opts}
}

// Use appends components to the pipeline. Recognised components are
// RouteRegistrar values, func(*mux.Router), *mux.Router, middleware and
// anything an introspector accepts. Other components contribute no routes.
func (b *Builder) Use(components ...any) {
	for _, c := range components {
		b.use(c)
	}
}

func (b *Builder) use(c any) {
	stage := Stage{Index: len(b.stages), Name: componentName(c)}

	switch v := c.(type) {
	case RouteRegistrar:
		stage.Kind = KindRegistrar
		stage.router = b.current.NewRoute().Subrouter()
		v.RegisterRoutes(stage.router)

	case func(*mux.Router):
		stage.Kind = KindRegistrar
		stage.router = b.current.NewRoute().Subrouter()
		v(stage.router)

	case *mux.Router:
		stage.Kind = KindRouter
		stage.router = v
		b.current.Mount(v)

	case mux.MiddlewareFunc:
		stage.Kind = KindMiddleware
		b.pushMiddleware(v)

	case func(http.Handler) http.Handler:
		stage.Kind = KindMiddleware
		b.pushMiddleware(v)

	default:
		stage.Kind = KindOpaque
		b.introspect(c, &stage)
	}

	if stage.router != nil {
		stage.Routes = len(leafRoutes(stage.router))
	}

	log := b.opts.logger.WithFields(logrus.Fields{
		"stage":  stage.Name,
		"kind":   stage.Kind,
		"routes": stage.Routes,
	})
	switch {
	case stage.Err != nil:
		log.WithError(stage.Err).Warn("route introspection failed")
	case stage.Kind == KindOpaque:
		log.Debug("component contributes no routes")
	default:
		log.Debug("pipeline stage registered")
	}

	b.stages = append(b.stages, stage)
}

func (b *Builder) pushMiddleware(mw mux.MiddlewareFunc) {
	sub := b.current.NewRoute().Subrouter()
	sub.Use(mw)
	b.current = sub
}

func (b *Builder) introspect(c any, stage *Stage) {
	for _, in := range b.opts.introspectors {
		r := mux.NewRouter()
		ok, err := in(c, r)
		if err != nil {
			stage.Err = err
			return
		}
		if ok {
			stage.Kind = KindIntrospected
			stage.router = r
			b.current.Mount(r)
			return
		}
	}
}

func componentName(c any) string {
	if c == nil {
		return "<nil>"
	}
	if v := reflect.ValueOf(c); v.Kind() == reflect.Func {
		if id := action.FuncIdentity(c); !id.IsZero() {
			return id.String()
		}
	}
	return fmt.Sprintf("%T", c)
}

// leafRoutes returns the routes of r and its subrouters that carry a
// handler other than a router, in walk order.
func leafRoutes(r *mux.Router) []*mux.Route {
	var out []*mux.Route
	_ = r.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if _, ok := route.GetHandler().(*mux.Router); !ok {
			out = append(out, route)
		}
		return nil
	})
	return out
}

// Assemble runs configure once against a fresh builder and freezes the
// resulting route table.
func Assemble(configure func(*Builder), opts ...Option) (table *Table, err error) {
	if configure == nil {
		return nil, ErrNoConfigure
	}

	o := newOptions(opts)
	b := newBuilder(o)

	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = fmt.Errorf("pipeline: configure panicked: %v", rec)
		}
	}()
	configure(b)

	return newTable(b)
}
