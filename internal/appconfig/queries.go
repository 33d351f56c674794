package appconfig

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// queriesDocument is the map form of a queries file.
type queriesDocument struct {
	Queries []string `yaml:"queries"`
}

// LoadQueries reads a YAML queries file. The file is either a plain list of
// query strings or a map with a `queries:` list. Blank entries are dropped.
func LoadQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse queries file %s: %w", path, err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("queries file %s is empty", path)
	}

	var raw []string
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode queries list in %s: %w", path, err)
		}
	case yaml.MappingNode:
		var doc queriesDocument
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode queries map in %s: %w", path, err)
		}
		raw = doc.Queries
	default:
		return nil, fmt.Errorf("queries file %s must hold a list or a queries: map", path)
	}

	queries := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("queries file %s lists no queries", path)
	}
	return queries, nil
}
