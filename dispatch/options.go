package dispatch

import (
	"github.com/sirupsen/logrus"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/pipeline"
)

type options struct {
	logger   logrus.FieldLogger
	services *action.Services
}

// Option configures a dispatch.
type Option func(*options)

// WithLogger sets the logger outcomes are reported to. The table's logger
// is used by default.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithServices overrides the table's binder and validator.
func WithServices(s action.Services) Option {
	return func(o *options) {
		o.services = &s
	}
}

func newOptions(table *pipeline.Table, opts []Option) *options {
	o := &options{logger: table.Logger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
