// Package config holds the recognized configuration-key map (spec.md
// §6): a small validated struct built either through functional
// options, in the teacher's idiom (compare LoggerConfig/GracefulShutdown
// in internal/klog), or from a string-keyed map the way a CLI front end
// receives `-cfg key:value` pairs. Unrecognized keys are rejected in
// both paths.
package config

import "fmt"

// ContextFactory selects a kcontext backend.
type ContextFactory string

const (
	FactoryRaw      ContextFactory = "raw"
	FactoryBoost    ContextFactory = "boost"
	FactoryUcontext ContextFactory = "ucontext"
	FactoryThread   ContextFactory = "thread"
	FactorySerial   ContextFactory = "serial"
)

func (f ContextFactory) valid() bool {
	switch f {
	case FactoryRaw, FactoryBoost, FactoryUcontext, FactoryThread, FactorySerial:
		return true
	}
	return false
}

// Config is the fully-resolved, validated configuration for one
// simulator instance. Zero value is not valid; use New.
type Config struct {
	MaxminPrecision       float64
	SurfPrecision         float64
	MaxminConcurrencyLimit int

	NetworkLatencyFactor   float64
	NetworkBandwidthFactor float64
	NetworkWeightS         float64
	NetworkTCPGamma        float64

	ContextFactory           ContextFactory
	ContextStackSizeKiB      int
	ContextParallelThreshold int
	ContextNThreads          int

	ModelCheck bool
	SMPIWtime  float64
}

// Option mutates a Config under construction.
type Option func(*Config)

func WithMaxminPrecision(v float64) Option  { return func(c *Config) { c.MaxminPrecision = v } }
func WithSurfPrecision(v float64) Option    { return func(c *Config) { c.SurfPrecision = v } }
func WithMaxminConcurrencyLimit(v int) Option {
	return func(c *Config) { c.MaxminConcurrencyLimit = v }
}
func WithNetworkLatencyFactor(v float64) Option {
	return func(c *Config) { c.NetworkLatencyFactor = v }
}
func WithNetworkBandwidthFactor(v float64) Option {
	return func(c *Config) { c.NetworkBandwidthFactor = v }
}
func WithNetworkWeightS(v float64) Option  { return func(c *Config) { c.NetworkWeightS = v } }
func WithNetworkTCPGamma(v float64) Option { return func(c *Config) { c.NetworkTCPGamma = v } }
func WithContextFactory(f ContextFactory) Option {
	return func(c *Config) { c.ContextFactory = f }
}
func WithContextStackSizeKiB(v int) Option { return func(c *Config) { c.ContextStackSizeKiB = v } }
func WithContextParallelThreshold(v int) Option {
	return func(c *Config) { c.ContextParallelThreshold = v }
}
func WithContextNThreads(v int) Option { return func(c *Config) { c.ContextNThreads = v } }
func WithModelCheck(v bool) Option     { return func(c *Config) { c.ModelCheck = v } }
func WithSMPIWtime(v float64) Option   { return func(c *Config) { c.SMPIWtime = v } }

// New builds a Config with spec.md §6's documented defaults, then
// applies opts in order.
func New(opts ...Option) *Config {
	c := &Config{
		MaxminPrecision:        1e-5,
		SurfPrecision:          1e-5,
		MaxminConcurrencyLimit: -1,
		ContextFactory:         FactorySerial,
		ContextStackSizeKiB:    128,
		ContextNThreads:        1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// knownKeys is the §6 recognized-key table. FromMap rejects anything
// not listed here.
var knownKeys = map[string]bool{
	"maxmin/precision":          true,
	"surf/precision":            true,
	"maxmin/concurrency-limit":  true,
	"network/latency-factor":    true,
	"network/bandwidth-factor":  true,
	"network/weight-S":          true,
	"network/TCP-gamma":         true,
	"context/factory":           true,
	"context/stack-size":        true,
	"context/parallel-threshold": true,
	"context/nthreads":          true,
	"model-check":               true,
	"smpi/wtime":                true,
}

// FromMap builds a Config from a string-keyed configuration map, the
// shape the CLI/environment front end hands the core (spec.md §6).
// Any key outside the recognized set is rejected.
func FromMap(m map[string]interface{}) (*Config, error) {
	for k := range m {
		if !knownKeys[k] {
			return nil, fmt.Errorf("config: unrecognized key %q", k)
		}
	}

	c := New()
	get := func(k string) (interface{}, bool) { v, ok := m[k]; return v, ok }

	asFloat := func(k string) (float64, bool, error) {
		v, ok := get(k)
		if !ok {
			return 0, false, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return 0, false, fmt.Errorf("config: %q must be a number, got %T", k, v)
		}
		return f, true, nil
	}
	asInt := func(k string) (int, bool, error) {
		v, ok := get(k)
		if !ok {
			return 0, false, nil
		}
		i, ok := toInt(v)
		if !ok {
			return 0, false, fmt.Errorf("config: %q must be an integer, got %T", k, v)
		}
		return i, true, nil
	}

	if f, ok, e := asFloat("maxmin/precision"); e != nil {
		return nil, e
	} else if ok {
		c.MaxminPrecision = f
	}
	if f, ok, e := asFloat("surf/precision"); e != nil {
		return nil, e
	} else if ok {
		c.SurfPrecision = f
	}
	if i, ok, e := asInt("maxmin/concurrency-limit"); e != nil {
		return nil, e
	} else if ok {
		c.MaxminConcurrencyLimit = i
	}
	if f, ok, e := asFloat("network/latency-factor"); e != nil {
		return nil, e
	} else if ok {
		c.NetworkLatencyFactor = f
	}
	if f, ok, e := asFloat("network/bandwidth-factor"); e != nil {
		return nil, e
	} else if ok {
		c.NetworkBandwidthFactor = f
	}
	if f, ok, e := asFloat("network/weight-S"); e != nil {
		return nil, e
	} else if ok {
		c.NetworkWeightS = f
	}
	if f, ok, e := asFloat("network/TCP-gamma"); e != nil {
		return nil, e
	} else if ok {
		c.NetworkTCPGamma = f
	}
	if v, ok := get("context/factory"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("config: %q must be a string", "context/factory")
		}
		f := ContextFactory(s)
		if !f.valid() {
			return nil, fmt.Errorf("config: %q is not a recognized context factory", s)
		}
		c.ContextFactory = f
	}
	if i, ok, e := asInt("context/stack-size"); e != nil {
		return nil, e
	} else if ok {
		c.ContextStackSizeKiB = i
	}
	if i, ok, e := asInt("context/parallel-threshold"); e != nil {
		return nil, e
	} else if ok {
		c.ContextParallelThreshold = i
	}
	if i, ok, e := asInt("context/nthreads"); e != nil {
		return nil, e
	} else if ok {
		c.ContextNThreads = i
	}
	if v, ok := get("model-check"); ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("config: %q must be a bool", "model-check")
		}
		c.ModelCheck = b
	}
	if f, ok, e := asFloat("smpi/wtime"); e != nil {
		return nil, e
	} else if ok {
		c.SMPIWtime = f
	}

	return c, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
