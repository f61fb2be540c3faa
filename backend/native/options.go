package native

import "github.com/gogpu/gputypes"

// Option configures a Backend.
type Option func(*options)

type options struct {
	labelPrefix string
	limits      gputypes.Limits
}

func defaultOptions() options {
	return options{
		labelPrefix: "resource",
		limits:      gputypes.DefaultLimits(),
	}
}

// WithLabelPrefix sets the prefix of debug labels given to HAL objects.
func WithLabelPrefix(prefix string) Option {
	return func(o *options) {
		o.labelPrefix = prefix
	}
}

// WithLimits sets the device limits textures are checked against.
// The default is gputypes.DefaultLimits().
func WithLimits(limits gputypes.Limits) Option {
	return func(o *options) {
		o.limits = limits
	}
}
