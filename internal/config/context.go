package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/taskdb/internal/query"
)

// Context is a named filter expression. When active, its project
// constraint is AND-combined with every query unless the query opts out.
type Context struct {
	Name   string `yaml:"name"`
	Filter string `yaml:"filter"`
}

// Project extracts the project constraint from the context's filter
// expression, or "" when the filter carries none.
func (c Context) Project() string {
	return query.ProjectFromFilter(c.Filter)
}

// ContextFile is the on-disk shape of the context definitions.
type ContextFile struct {
	Active   string    `yaml:"active,omitempty"`
	Contexts []Context `yaml:"contexts,omitempty"`
}

// LoadContexts reads the context file at path. A missing file is an
// empty definition set, not an error.
func LoadContexts(path string) (*ContextFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ContextFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contexts: %w", err)
	}
	var cf ContextFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse contexts %s: %w", path, err)
	}
	return &cf, nil
}

// SaveContexts writes the context file, creating the directory if
// needed. Definitions are sorted by name for stable output.
func SaveContexts(path string, cf *ContextFile) error {
	sort.Slice(cf.Contexts, func(i, j int) bool {
		return cf.Contexts[i].Name < cf.Contexts[j].Name
	})
	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal contexts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write contexts: %w", err)
	}
	return nil
}

// Lookup returns the named context definition.
func (cf *ContextFile) Lookup(name string) (Context, bool) {
	for _, c := range cf.Contexts {
		if c.Name == name {
			return c, true
		}
	}
	return Context{}, false
}

// Define adds or replaces a context definition.
func (cf *ContextFile) Define(ctx Context) {
	for i, c := range cf.Contexts {
		if c.Name == ctx.Name {
			cf.Contexts[i] = ctx
			return
		}
	}
	cf.Contexts = append(cf.Contexts, ctx)
}

// Delete removes a context definition; deleting the active context also
// deactivates it.
func (cf *ContextFile) Delete(name string) bool {
	for i, c := range cf.Contexts {
		if c.Name == name {
			cf.Contexts = append(cf.Contexts[:i], cf.Contexts[i+1:]...)
			if cf.Active == name {
				cf.Active = ""
			}
			return true
		}
	}
	return false
}

// SetActive activates the named context.
func (cf *ContextFile) SetActive(name string) error {
	if name == "" {
		cf.Active = ""
		return nil
	}
	if _, ok := cf.Lookup(name); !ok {
		return fmt.Errorf("context %q is not defined", name)
	}
	cf.Active = name
	return nil
}

// ActiveProject resolves the active context to its project constraint.
// No active context, or one with no project term, yields "".
func (cf *ContextFile) ActiveProject() string {
	if cf.Active == "" {
		return ""
	}
	ctx, ok := cf.Lookup(cf.Active)
	if !ok {
		return ""
	}
	return ctx.Project()
}
