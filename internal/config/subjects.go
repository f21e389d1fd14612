package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed subjects.yaml
var defaultSubjects []byte

// Subject is one entry of the classifier vocabulary.
type Subject struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// LoadSubjects returns the vocabulary from path, or the embedded default
// when path is empty.
func LoadSubjects(path string) ([]Subject, error) {
	data := defaultSubjects
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading subjects file: %w", err)
		}
		data = b
	}
	var out []Subject
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing subjects: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("subject vocabulary is empty")
	}
	return out, nil
}
