package pipeline

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/vitalvas/routeprobe/action"
)

type options struct {
	logger        logrus.FieldLogger
	services      action.Services
	introspectors []Introspector
}

// Option configures assembly.
type Option func(*options)

// WithLogger sets the logger stages are reported to. The default discards
// everything.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithServices sets the binder and validator actions resolve from the
// table's handler and from dispatch.
func WithServices(s action.Services) Option {
	return func(o *options) {
		o.services = s
	}
}

// WithIntrospector adds a hook for components the builder does not know.
// Hooks run in the order given, after the built-in chi hook.
func WithIntrospector(in Introspector) Option {
	return func(o *options) {
		o.introspectors = append(o.introspectors, in)
	}
}

func newOptions(opts []Option) *options {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	o := &options{
		logger:        logger,
		introspectors: []Introspector{ChiIntrospector},
	}
	for _, opt := range opts {
		opt(o)
	}

	def := action.DefaultServices()
	if o.services.Binder == nil {
		o.services.Binder = def.Binder
	}
	if o.services.Validator == nil {
		o.services.Validator = def.Validator
	}
	return o
}
