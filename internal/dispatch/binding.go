// In file: internal/dispatch/binding.go
package dispatch

import (
	"fmt"
	"sort"

	"github.com/dileep-u-k/tool-router/internal/tools"
)

// Where a binding entry came from.
const (
	SourceTool     = "tool"
	SourceCategory = "category"
)

// ProviderSet is the part of the gateway a binding needs to check provider names.
type ProviderSet interface {
	Has(name string) bool
}

// BindingEntry is the effective binding of one catalog tool. Provider is empty when unbound.
type BindingEntry struct {
	Tool     string `json:"tool"`
	Category string `json:"category"`
	Provider string `json:"provider,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Binding is the static tool → provider policy. It is read-only after construction.
type Binding struct {
	byTool     map[string]string
	byCategory map[string]string
	catalog    *tools.Catalog
}

// NewBinding checks that every bound tool and category exists in the catalog and that every
// provider is known.
func NewBinding(byTool, byCategory map[string]string, catalog *tools.Catalog, providers ProviderSet) (*Binding, error) {
	categories := make(map[string]bool)
	for _, def := range catalog.Definitions() {
		categories[def.Category] = true
	}

	b := &Binding{
		byTool:     make(map[string]string, len(byTool)),
		byCategory: make(map[string]string, len(byCategory)),
		catalog:    catalog,
	}
	for tool, provider := range byTool {
		if !catalog.Has(tool) {
			return nil, fmt.Errorf("binding for unknown tool %q", tool)
		}
		if !providers.Has(provider) {
			return nil, fmt.Errorf("tool %q is bound to unknown provider %q", tool, provider)
		}
		b.byTool[tool] = provider
	}
	for category, provider := range byCategory {
		if !categories[category] {
			return nil, fmt.Errorf("binding for unknown category %q", category)
		}
		if !providers.Has(provider) {
			return nil, fmt.Errorf("category %q is bound to unknown provider %q", category, provider)
		}
		b.byCategory[category] = provider
	}
	return b, nil
}

// Resolve returns the authoritative provider for tool. A tool-level binding wins over its
// category's binding.
func (b *Binding) Resolve(tool string) (string, bool) {
	if p, ok := b.byTool[tool]; ok {
		return p, true
	}
	def, err := b.catalog.Lookup(tool)
	if err != nil {
		return "", false
	}
	p, ok := b.byCategory[def.Category]
	return p, ok
}

// Entries lists the effective binding of every catalog tool, sorted by tool name.
func (b *Binding) Entries() []BindingEntry {
	entries := make([]BindingEntry, 0, len(b.catalog.Names()))
	for _, def := range b.catalog.Definitions() {
		e := BindingEntry{Tool: def.Function.Name, Category: def.Category}
		if p, ok := b.byTool[e.Tool]; ok {
			e.Provider, e.Source = p, SourceTool
		} else if p, ok := b.byCategory[e.Category]; ok {
			e.Provider, e.Source = p, SourceCategory
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Tool < entries[j].Tool })
	return entries
}
