// Package app provides the scribe service application.
package app

import (
	"fmt"

	"github.com/spf13/pflag"

	docqaopts "github.com/kart-io/scribe-x/pkg/options/docqa"
	genopts "github.com/kart-io/scribe-x/pkg/options/generate"
	httpopts "github.com/kart-io/scribe-x/pkg/options/http"
	llmopts "github.com/kart-io/scribe-x/pkg/options/llm"
	logopts "github.com/kart-io/scribe-x/pkg/options/logger"
	milvusopts "github.com/kart-io/scribe-x/pkg/options/milvus"
	pgopts "github.com/kart-io/scribe-x/pkg/options/postgres"
)

// Options contains all scribe service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Postgres contains history database configuration.
	// When Postgres.Database is empty the service falls back to an
	// embedded SQLite database at SQLitePath.
	Postgres *pgopts.Options `json:"postgres" mapstructure:"postgres"`

	// SQLitePath is the embedded database file used without Postgres.
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`

	// Milvus contains vector store configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Generate contains content generation configuration.
	Generate *genopts.Options `json:"generate" mapstructure:"generate"`

	// DocQA contains document Q&A configuration.
	DocQA *docqaopts.Options `json:"docqa" mapstructure:"docqa"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:       httpopts.NewOptions(),
		Log:        logopts.NewOptions(),
		Postgres:   pgopts.NewOptions(),
		SQLitePath: "_output/scribe.db",
		Milvus:     milvusopts.NewOptions(),
		Embedding:  llmopts.NewEmbeddingOptions(),
		Chat:       llmopts.NewChatOptions(),
		Generate:   genopts.NewOptions(),
		DocQA:      docqaopts.NewOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Postgres.AddFlags(fs)
	fs.StringVar(&o.SQLitePath, "sqlite-path", o.SQLitePath, "Embedded database file used when Postgres is not configured.")
	o.Milvus.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Generate.AddFlags(fs)
	o.DocQA.AddFlags(fs)
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if err := o.Postgres.Validate(); err != nil {
		return err
	}
	for prefix, errs := range map[string][]error{
		"http":      o.HTTP.Validate(),
		"milvus":    o.Milvus.Validate(),
		"embedding": o.Embedding.Validate(),
		"chat":      o.Chat.Validate(),
		"generate":  o.Generate.Validate(),
		"docqa":     o.DocQA.Validate(),
	} {
		if len(errs) > 0 {
			return fmt.Errorf("%s: %w", prefix, errs[0])
		}
	}
	if o.Postgres.Database == "" && o.SQLitePath == "" {
		return fmt.Errorf("either postgres.database or sqlite-path must be set")
	}
	return nil
}

// Complete completes the options.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Chat.Complete(); err != nil {
		return err
	}
	if err := o.Generate.Complete(); err != nil {
		return err
	}
	return o.DocQA.Complete()
}

// UsePostgres reports whether the history store runs on PostgreSQL.
func (o *Options) UsePostgres() bool {
	return o.Postgres.Database != ""
}
