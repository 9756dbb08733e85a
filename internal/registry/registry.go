// Package registry maintains the catalog of tool descriptors.
// Descriptors are loaded at startup and replaced only by configuration
// reload; task execution never mutates them.
package registry

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// Registry is a thread-safe catalog of tool descriptors.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*models.ToolDescriptor
	// path is the catalog file backing this registry, empty for defaults.
	path string
}

// catalogFile is the YAML shape of a catalog file.
type catalogFile struct {
	Tools []catalogTool `yaml:"tools"`
}

// catalogTool is one YAML catalog entry. Cost is a string in the file and
// converted to a CostClass on load.
type catalogTool struct {
	Name           string            `yaml:"name"`
	Operations     []string          `yaml:"operations"`
	Params         map[string]string `yaml:"params"`
	Cost           string            `yaml:"cost"`
	Enabled        *bool             `yaml:"enabled"`
	GeneralPurpose bool              `yaml:"general_purpose"`
}

// New creates a registry populated with the built-in default catalog.
func New() *Registry {
	r := &Registry{tools: make(map[string]*models.ToolDescriptor)}
	r.replace(Defaults())
	return r
}

// Load creates a registry from a YAML catalog file.
func Load(path string) (*Registry, error) {
	r := &Registry{tools: make(map[string]*models.ToolDescriptor), path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the catalog file and atomically replaces the descriptor
// set. A registry created with New has no backing file and reloads to the
// built-in defaults.
func (r *Registry) Reload() error {
	if r.path == "" {
		r.replace(Defaults())
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", r.path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog %s: %w", r.path, err)
	}
	if len(file.Tools) == 0 {
		return fmt.Errorf("catalog %s declares no tools", r.path)
	}

	descriptors := make([]*models.ToolDescriptor, 0, len(file.Tools))
	for _, ct := range file.Tools {
		if ct.Name == "" {
			return fmt.Errorf("catalog %s contains a tool without a name", r.path)
		}
		enabled := true
		if ct.Enabled != nil {
			enabled = *ct.Enabled
		}
		descriptors = append(descriptors, &models.ToolDescriptor{
			Name:           ct.Name,
			Operations:     ct.Operations,
			Params:         ct.Params,
			Cost:           models.ParseCostClass(ct.Cost),
			Enabled:        enabled,
			GeneralPurpose: ct.GeneralPurpose,
		})
	}

	r.replace(descriptors)
	log.Printf("[registry] loaded %d tools from %s", len(descriptors), r.path)
	return nil
}

// replace swaps the descriptor set.
func (r *Registry) replace(descriptors []*models.ToolDescriptor) {
	tools := make(map[string]*models.ToolDescriptor, len(descriptors))
	for _, d := range descriptors {
		tools[d.Name] = d
	}

	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()
}

// Get returns the descriptor for a tool name, or nil if unknown.
func (r *Registry) Get(name string) *models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enabled returns all enabled descriptors sorted by name.
func (r *Registry) Enabled() []*models.ToolDescriptor {
	all := r.List()
	out := all[:0]
	for _, d := range all {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Size returns the number of registered tools.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Defaults returns the built-in tool catalog. It mirrors the capability
// providers the analytics assistant ships with; a YAML catalog overrides it.
func Defaults() []*models.ToolDescriptor {
	return []*models.ToolDescriptor{
		{
			Name: "warehouse-sql",
			Operations: []string{
				"sales", "revenue", "profit", "aggregate", "sum", "count",
				"region", "product", "category", "table", "sql", "query",
			},
			Params:  map[string]string{"query": "string", "limit": "int"},
			Cost:    models.CostLow,
			Enabled: true,
		},
		{
			Name: "redshift-warehouse",
			Operations: []string{
				"sales", "revenue", "aggregate", "sum", "region", "sql",
				"warehouse", "join",
			},
			Params:  map[string]string{"query": "string"},
			Cost:    models.CostHigh,
			Enabled: true,
		},
		{
			Name: "stats-engine",
			Operations: []string{
				"statistics", "trend", "trends", "forecast", "predict",
				"prediction", "anomaly", "outlier", "correlation",
				"regression", "distribution",
			},
			Params:  map[string]string{"series": "[]float64", "horizon": "int"},
			Cost:    models.CostMedium,
			Enabled: true,
		},
		{
			Name: "chart-studio",
			Operations: []string{
				"chart", "graph", "plot", "visualize", "visualization",
				"dashboard", "heatmap",
			},
			Params:  map[string]string{"chart_type": "string"},
			Cost:    models.CostMedium,
			Enabled: true,
		},
		{
			Name:       "web-search",
			Operations: []string{"market", "news", "benchmark", "external"},
			Params:     map[string]string{"terms": "string"},
			Cost:       models.CostHigh,
			Enabled:    true,
		},
		{
			Name:           "answer-assist",
			Operations:     []string{"summarize", "explain"},
			Params:         map[string]string{"text": "string"},
			Cost:           models.CostLow,
			Enabled:        true,
			GeneralPurpose: true,
		},
	}
}
