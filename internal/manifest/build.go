package manifest

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/expect"
	"github.com/vitalvas/routeprobe/mux"
	"github.com/vitalvas/routeprobe/muxhandlers"
	"github.com/vitalvas/routeprobe/openapi"
	"github.com/vitalvas/routeprobe/pipeline"
)

// Build assembles the manifest's stages into a route table. OpenAPI
// documents are loaded and middleware is configured before assembly, so
// their errors come first.
func (m *Manifest) Build(ctx context.Context, opts ...pipeline.Option) (*pipeline.Table, error) {
	components := make([]any, 0, len(m.Stages))
	for i, s := range m.Stages {
		c, err := m.component(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("manifest: stage %d: %w", i, err)
		}
		components = append(components, c)
	}

	return pipeline.Assemble(func(b *pipeline.Builder) {
		for _, c := range components {
			b.Use(c)
		}
	}, opts...)
}

func (m *Manifest) component(ctx context.Context, s Stage) (any, error) {
	switch {
	case len(s.Routes) > 0:
		return routesRegistrar(s.Routes)

	case s.OpenAPI != "":
		path := s.OpenAPI
		if !filepath.IsAbs(path) && m.dir != "" {
			path = filepath.Join(m.dir, path)
		}
		doc, err := openapi.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		return openapi.Registrar(doc, nil), nil

	case s.BasicAuth != nil:
		return muxhandlers.BasicAuthMiddleware(muxhandlers.BasicAuthConfig{
			Realm:       s.BasicAuth.Realm,
			Credentials: s.BasicAuth.Credentials,
		})

	case s.BearerAuth != nil:
		return muxhandlers.BearerAuthMiddleware(muxhandlers.BearerAuthConfig{
			Key:        []byte(s.BearerAuth.Key),
			Issuer:     s.BearerAuth.Issuer,
			Audience:   s.BearerAuth.Audience,
			Algorithms: s.BearerAuth.Algorithms,
		})

	case s.ContentType != nil:
		return muxhandlers.ContentTypeCheckMiddleware(muxhandlers.ContentTypeCheckConfig{
			AllowedTypes: s.ContentType.Allowed,
			Methods:      s.ContentType.Methods,
		})

	case s.SizeLimit != nil:
		return muxhandlers.RequestSizeLimitMiddleware(muxhandlers.RequestSizeLimitConfig{
			MaxBytes: s.SizeLimit.MaxBytes,
		})

	case s.RequestID != nil:
		return muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{
			HeaderName:  s.RequestID.Header,
			Require:     s.RequestID.Require,
			RequireUUID: s.RequestID.RequireUUID,
		}), nil

	case s.Recovery:
		return muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{}), nil
	}

	return nil, ErrStageKind
}

func routesRegistrar(routes []Route) (pipeline.RouteRegistrar, error) {
	actions := make([]*action.Action, len(routes))
	for i, r := range routes {
		a, err := r.action()
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", r.Path, err)
		}
		actions[i] = a
	}

	return pipeline.RegistrarFunc(func(router *mux.Router) {
		for i, r := range routes {
			r.register(router, actions[i])
		}
	}), nil
}

// HandlerIdentity splits "Controller.Action" at the last dot. A name
// without a dot is a bare action.
func HandlerIdentity(name string) action.Identity {
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return action.Identity{Controller: name[:i], Action: name[i+1:]}
	}
	return action.Identity{Action: name}
}

func (r Route) action() (*action.Action, error) {
	var opts []action.Option

	for _, p := range r.Params {
		src, err := action.ParseSource(p.In)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Name, err)
		}

		t := reflect.TypeFor[string]()
		if p.Type != "" {
			var ok bool
			if t, ok = expect.LookupType(p.Type); !ok {
				return nil, fmt.Errorf("param %s: unknown type %q", p.Name, p.Type)
			}
		}

		popts := []action.ParamOption{action.OfType(t)}
		if p.From != "" {
			popts = append(popts, action.From(p.From))
		}
		if p.Optional {
			popts = append(popts, action.Optional())
		}
		if p.Default != nil {
			popts = append(popts, action.Default(p.Default))
		}
		if p.Validate != "" {
			popts = append(popts, action.Validate(p.Validate))
		}
		opts = append(opts, action.Declared(p.Name, src, popts...))
	}

	for _, k := range slices.Sorted(maps.Keys(r.RouteValues)) {
		opts = append(opts, action.RouteValue(k, r.RouteValues[k]))
	}

	var filters []action.Filter
	if len(r.Consumes) > 0 {
		filters = append(filters, action.Consumes(r.Consumes...))
	}
	if len(r.Produces) > 0 {
		filters = append(filters, action.Produces(r.Produces...))
	}
	for _, h := range r.Require {
		filters = append(filters, action.RequireHeader(h))
	}
	if len(filters) > 0 {
		opts = append(opts, action.Filters(filters...))
	}

	return action.Declare(HandlerIdentity(r.Handler), opts...), nil
}

func (r Route) register(router *mux.Router, a *action.Action) {
	route := router.NewRoute()
	if r.Prefix {
		route.PathPrefix(r.Path)
	} else {
		route.Path(r.Path)
	}
	if r.Host != "" {
		route.Host(r.Host)
	}
	if len(r.Methods) > 0 {
		route.Methods(r.Methods...)
	}
	if len(r.Headers) > 0 {
		route.Headers(pairs(r.Headers)...)
	}
	if len(r.Queries) > 0 {
		route.Queries(pairs(r.Queries)...)
	}
	if len(r.Defaults) > 0 {
		route.Defaults(pairs(r.Defaults)...)
	}
	for _, k := range slices.Sorted(maps.Keys(r.DataTokens)) {
		route.DataToken(k, r.DataTokens[k])
	}
	if r.Name != "" {
		route.Name(r.Name)
	}
	if r.Order != 0 {
		route.Order(r.Order)
	}
	route.Handler(a)
}

func pairs(m map[string]string) []string {
	out := make([]string, 0, 2*len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, k, m[k])
	}
	return out
}
