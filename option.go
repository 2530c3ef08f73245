package gattc

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRequestTimeout is the ATT transaction timeout.
const DefaultRequestTimeout = 30 * time.Second

type config struct {
	log     logrus.FieldLogger
	rxMTU   uint16
	timeout time.Duration
	cache   ProfileCache
}

func defaultConfig() config {
	return config{
		log:     logrus.StandardLogger(),
		rxMTU:   DefaultMTU,
		timeout: DefaultRequestTimeout,
	}
}

func (c *config) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// An Option configures a Client, a Peripheral or a Central.
// Applying an Option returns an Option restoring the previous value.
type Option func(*config) Option

// Logger sets the logger. The default is the logrus standard logger.
func Logger(l logrus.FieldLogger) Option {
	return func(c *config) Option {
		prev := c.log
		c.log = l
		return Logger(prev)
	}
}

// ClientMTU sets the receive MTU offered in the MTU exchange.
// Values below DefaultMTU are raised to it.
func ClientMTU(n uint16) Option {
	return func(c *config) Option {
		prev := c.rxMTU
		if n < DefaultMTU {
			n = DefaultMTU
		}
		c.rxMTU = n
		return ClientMTU(prev)
	}
}

// RequestTimeout sets the ATT transaction timeout. When a request stays
// unanswered for d, every pending request fails with ErrTimeout and the
// connection is closed. Zero disables the timeout.
func RequestTimeout(d time.Duration) Option {
	return func(c *config) Option {
		prev := c.timeout
		c.timeout = d
		return RequestTimeout(prev)
	}
}

// Cache sets the profile cache used to store discovered attribute trees.
func Cache(pc ProfileCache) Option {
	return func(c *config) Option {
		prev := c.cache
		c.cache = pc
		return Cache(prev)
	}
}
