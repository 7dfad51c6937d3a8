// Package file loads machine definitions from YAML documents on disk.
package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

// Document is the on-disk shape of a machine definition.
type Document struct {
	Name  string        `yaml:"name,omitempty" json:"name,omitempty"`
	Nodes []domain.Node `yaml:"nodes" json:"nodes"`
	Edges []domain.Edge `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// Graph builds the referentially consistent graph described by the document.
func (d Document) Graph() (*graph.Graph, error) {
	return graph.New(d.Nodes, d.Edges)
}

// FromGraph captures a graph back into a document, preserving order.
func FromGraph(name string, g *graph.Graph) Document {
	return Document{Name: name, Nodes: g.Nodes(), Edges: g.Edges()}
}

// Parse decodes a YAML machine definition.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("malformed machine definition: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return Document{}, fmt.Errorf("machine definition declares no nodes")
	}
	return doc, nil
}

// Loader reads a machine definition from a single YAML file.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given path. The file is read on
// every Load, so edits between runs take effect without a restart.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load implements ports.GraphLoader.
func (l *Loader) Load(_ context.Context) (*graph.Graph, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading machine definition: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	g, err := doc.Graph()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return g, nil
}
