package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ratesFile is the on-disk shape of a pricing file:
//
//	rates:
//	  kimi: 0.01
//	  qwen: 0.005
//	  huggingface: 0.002
type ratesFile struct {
	Rates map[string]float64 `yaml:"rates"`
}

// LoadRatesFile reads per-model rates from a YAML file. Entries for
// unknown model families are dropped with no error; they may belong to
// a newer build.
func LoadRatesFile(path string) (map[ModelID]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file %q: %w", path, err)
	}

	var file ratesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file %q: %w", path, err)
	}

	rates := make(map[ModelID]float64, len(file.Rates))
	for name, rate := range file.Rates {
		if model := ParseModel(name); model != ModelUnknown {
			rates[model] = rate
		}
	}

	return rates, nil
}
