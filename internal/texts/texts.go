// Package texts holds the text corpus clients race on. The server itself
// never reads the text bodies; it only hands out ids, and clients fetch the
// body over HTTP once the pre-race countdown begins.
package texts

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed samples.yaml
var embedded []byte

// Corpus is an immutable, id-indexed collection of text samples.
type Corpus struct {
	samples []string
}

// Load builds the corpus from the YAML file at path, or from the embedded
// samples when path is empty.
func Load(path string) (*Corpus, error) {
	data := embedded
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus file: %w", err)
		}
		data = b
	}

	var samples []string
	if err := yaml.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("corpus is empty")
	}
	return &Corpus{samples: samples}, nil
}

// Get returns the text with the given id.
func (c *Corpus) Get(id int) (string, bool) {
	if id < 0 || id >= len(c.samples) {
		return "", false
	}
	return c.samples[id], true
}

// Count returns the number of texts in the corpus.
func (c *Corpus) Count() int {
	return len(c.samples)
}
