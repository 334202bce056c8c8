// Package docqa provides document question-answering configuration options.
package docqa

import (
	"fmt"

	"github.com/kart-io/scribe-x/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// DefaultQAPrompt is the question-answering prompt installed on every engine.
const DefaultQAPrompt = `Below is data from a {{file_type}} file.
---------------------
{{context}}
---------------------
Question: {{question}}
Please provide a clear and concise answer based on the data above.
If you need to calculate something, show your work.
Answer: `

// Options contains document Q&A configuration.
type Options struct {
	// TopK is the number of retrieved chunks fed to the answerer.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// UploadDir is the directory uploaded documents are staged in.
	UploadDir string `json:"upload-dir" mapstructure:"upload-dir"`

	// QAPrompt is the question-answering prompt template.
	QAPrompt string `json:"qa-prompt" mapstructure:"qa-prompt"`

	// SampleRows is the number of raw rows included in a CSV summary.
	SampleRows int `json:"sample-rows" mapstructure:"sample-rows"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		TopK:         3,
		EmbeddingDim: 768, // nomic-embed-text dimension
		UploadDir:    "_output/uploads",
		QAPrompt:     DefaultQAPrompt,
		SampleRows:   10,
	}
}

// AddFlags adds flags for document Q&A options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"docqa.top-k", o.TopK, "Number of retrieved chunks per question.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"docqa.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.UploadDir, options.Join(prefixes...)+"docqa.upload-dir", o.UploadDir, "Directory for staging uploaded documents.")
	fs.IntVar(&o.SampleRows, options.Join(prefixes...)+"docqa.sample-rows", o.SampleRows, "Raw rows included in a CSV summary.")
}

// Validate validates the document Q&A options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("docqa.top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("docqa.embedding-dim must be positive"))
	}
	if o.SampleRows <= 0 {
		errs = append(errs, fmt.Errorf("docqa.sample-rows must be positive"))
	}
	return errs
}

// Complete completes the document Q&A options with defaults.
func (o *Options) Complete() error {
	if o.QAPrompt == "" {
		o.QAPrompt = DefaultQAPrompt
	}
	return nil
}
