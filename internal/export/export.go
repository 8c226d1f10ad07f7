// Package export renders the committed workspace as JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"modelsync/internal/graph"
	"modelsync/internal/workspace"
)

// Document is the exported form of a workspace.
type Document struct {
	Project  string             `json:"project"`
	PassID   string             `json:"pass_id,omitempty"`
	Modules  []workspace.Module `json:"modules"`
	Flavors  map[string]int     `json:"flavors"`
	Edges    int                `json:"edges"`
	Orphaned []string           `json:"orphaned_targets,omitempty"`
}

// NewDocument summarizes w.
func NewDocument(w *workspace.Workspace) Document {
	doc := Document{
		Project: w.Project,
		PassID:  w.LastPassID,
		Modules: w.Modules,
		Flavors: make(map[string]int),
	}
	known := make(map[string]bool, len(w.Modules))
	for _, m := range w.Modules {
		known[m.Key.String()] = true
	}
	orphaned := make(map[string]bool)
	for _, m := range w.Modules {
		flavor := m.Flavor
		if flavor == "" {
			flavor = graph.FlavorUnclassified
		}
		doc.Flavors[string(flavor)]++
		doc.Edges += len(m.Dependencies)
		for _, d := range m.Dependencies {
			if !known[d.Target.String()] {
				orphaned[d.Target.String()] = true
			}
		}
	}
	for target := range orphaned {
		doc.Orphaned = append(doc.Orphaned, target)
	}
	sort.Strings(doc.Orphaned)
	return doc
}

// WriteJSON encodes the workspace document to w.
func WriteJSON(w io.Writer, ws *workspace.Workspace) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(NewDocument(ws)); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// SaveJSON persists the workspace document to a JSON file.
func SaveJSON(path string, ws *workspace.Workspace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()
	return WriteJSON(f, ws)
}
