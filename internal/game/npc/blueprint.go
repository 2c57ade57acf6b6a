package npc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrBlueprintNotFound is returned when a campaign references an unknown blueprint.
var ErrBlueprintNotFound = errors.New("blueprint not found")

// DefaultGuard is synthesised as a protector when a blueprint defines none.
var DefaultGuard = Template{
	ID:          "town_guard",
	Name:        "Town Guard",
	Role:        "guard",
	Protection:  ProtectionNone,
	MaxHP:       11,
	AC:          16,
	AttackBonus: 3,
	DamageDice:  "1d8+1",
	XP:          25,
}

// Blueprint is the entity registry of one campaign world.
//
// Blueprint is immutable after construction and safe for concurrent reads.
type Blueprint struct {
	ID        string
	templates map[string]*Template
	ordered   []*Template
}

// NewBlueprint indexes templates by id.
//
// Precondition: every template passed Validate.
// Postcondition: Returns an error if two templates share an id.
func NewBlueprint(id string, templates []*Template) (*Blueprint, error) {
	b := &Blueprint{ID: id, templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if _, dup := b.templates[t.ID]; dup {
			return nil, fmt.Errorf("blueprint %q: duplicate npc id %q", id, t.ID)
		}
		b.templates[t.ID] = t
		b.ordered = append(b.ordered, t)
	}
	sort.Slice(b.ordered, func(i, j int) bool { return b.ordered[i].ID < b.ordered[j].ID })
	return b, nil
}

// Get returns the template with id, or nil when unknown.
func (b *Blueprint) Get(id string) *Template {
	if b == nil {
		return nil
	}
	return b.templates[id]
}

// All returns every template ordered by id.
func (b *Blueprint) All() []*Template {
	if b == nil {
		return nil
	}
	return append([]*Template(nil), b.ordered...)
}

// AtLocation returns templates whose Location equals location (case-insensitive), ordered by id.
func (b *Blueprint) AtLocation(location string) []*Template {
	if b == nil || location == "" {
		return nil
	}
	var out []*Template
	for _, t := range b.ordered {
		if strings.EqualFold(t.Location, location) {
			out = append(out, t)
		}
	}
	return out
}

// ProtectorsOf returns the templates summoned to defend t. Unknown ids are skipped;
// when none resolve, DefaultGuard is returned.
func (b *Blueprint) ProtectorsOf(t *Template) []*Template {
	var out []*Template
	if t != nil {
		for _, id := range t.Protectors {
			if p := b.Get(id); p != nil && !p.IsEssential() {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		guard := DefaultGuard
		out = append(out, &guard)
	}
	return out
}

// Registry holds every loaded blueprint keyed by id.
type Registry struct {
	mu         sync.RWMutex
	blueprints map[string]*Blueprint
}

// NewRegistry returns a registry containing blueprints.
func NewRegistry(blueprints ...*Blueprint) *Registry {
	r := &Registry{blueprints: make(map[string]*Blueprint, len(blueprints))}
	for _, b := range blueprints {
		r.blueprints[b.ID] = b
	}
	return r
}

// Get returns the blueprint with id or ErrBlueprintNotFound.
func (r *Registry) Get(id string) (*Blueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blueprints[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBlueprintNotFound, id)
	}
	return b, nil
}

// Put registers or replaces b.
func (r *Registry) Put(b *Blueprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blueprints[b.ID] = b
}

// LoadRegistry reads every subdirectory of root as a blueprint whose id is the
// directory name and whose NPCs are the *.yaml files inside it.
//
// Precondition: root must be a readable directory.
// Postcondition: Returns a registry or the first load error; partial results are discarded.
func LoadRegistry(root string) (*Registry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint dir %q: %w", root, err)
	}
	r := NewRegistry()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		b, err := LoadBlueprint(entry.Name(), filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		r.Put(b)
	}
	return r, nil
}

// LoadBlueprint reads all *.yaml and *.yml files in dir as NPC templates.
func LoadBlueprint(id, dir string) (*Blueprint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint %q: %w", dir, err)
	}
	var templates []*Template
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		loaded, err := LoadTemplatesFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, loaded...)
	}
	return NewBlueprint(id, templates)
}
