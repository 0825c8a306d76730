package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// PersonaDef is one custom persona entry in personas.yaml.
//
//	personas:
//	  - name: Pirate
//	    instruction: |
//	      You are a pirate. Answer like one.
type PersonaDef struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
}

type personasFile struct {
	Personas []PersonaDef `yaml:"personas"`
}

// LoadPersonas reads custom personas from a YAML file, keyed by name.
// A missing file yields an empty map.
func LoadPersonas(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read personas: %w", err)
	}

	var file personasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := make(map[string]string, len(file.Personas))
	for i, p := range file.Personas {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: persona %d has no name", path, i+1)
		}
		out[p.Name] = p.Instruction
	}
	return out, nil
}
