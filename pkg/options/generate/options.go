// Package generate provides content generation configuration options.
package generate

import (
	"fmt"
	"time"

	"github.com/kart-io/scribe-x/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains content generation configuration.
type Options struct {
	// MaxTokens caps the length of a single generation.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// DefaultTemperature is used when a request does not carry one.
	DefaultTemperature float64 `json:"default-temperature" mapstructure:"default-temperature"`

	// SearchMaxResults is the number of web search hits fed to the researcher.
	SearchMaxResults int `json:"search-max-results" mapstructure:"search-max-results"`

	// SearchTimeout bounds a single web search call.
	SearchTimeout time.Duration `json:"search-timeout" mapstructure:"search-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		MaxTokens:          2000,
		DefaultTemperature: 0.7,
		SearchMaxResults:   5,
		SearchTimeout:      15 * time.Second,
	}
}

// AddFlags adds flags for generation options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.MaxTokens, options.Join(prefixes...)+"generate.max-tokens", o.MaxTokens, "Maximum tokens for a single generation.")
	fs.Float64Var(&o.DefaultTemperature, options.Join(prefixes...)+"generate.default-temperature", o.DefaultTemperature, "Default sampling temperature.")
	fs.IntVar(&o.SearchMaxResults, options.Join(prefixes...)+"generate.search-max-results", o.SearchMaxResults, "Web search hits fed to the researcher.")
	fs.DurationVar(&o.SearchTimeout, options.Join(prefixes...)+"generate.search-timeout", o.SearchTimeout, "Timeout for a single web search call.")
}

// Validate validates the generation options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("generate.max-tokens must be positive"))
	}
	if o.DefaultTemperature < 0 || o.DefaultTemperature > 1 {
		errs = append(errs, fmt.Errorf("generate.default-temperature must be in [0,1]"))
	}
	if o.SearchMaxResults <= 0 {
		errs = append(errs, fmt.Errorf("generate.search-max-results must be positive"))
	}
	return errs
}

// Complete completes the generation options with defaults.
func (o *Options) Complete() error {
	return nil
}
