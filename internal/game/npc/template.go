// Package npc provides the world blueprint: NPC templates with their names,
// locations, combat statistics, and plot protection flags, loaded from YAML.
package npc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
)

// Protection classifies how strongly the narrative shields an NPC from death.
type Protection string

const (
	// ProtectionNone marks an ordinary NPC that can be killed.
	ProtectionNone Protection = "none"
	// ProtectionPlotSignificant NPCs can be fought but are knocked out instead of killed.
	ProtectionPlotSignificant Protection = "plot_significant"
	// ProtectionEssential NPCs can never be harmed by ordinary combat resolution.
	ProtectionEssential Protection = "essential"
)

// Valid reports whether p is a known protection level. The empty value is treated as none.
func (p Protection) Valid() bool {
	switch p {
	case "", ProtectionNone, ProtectionPlotSignificant, ProtectionEssential:
		return true
	}
	return false
}

// Template defines one blueprint NPC.
type Template struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Role        string     `yaml:"role"`
	Location    string     `yaml:"location"`
	Faction     string     `yaml:"faction"`
	Protection  Protection `yaml:"protection"`

	MaxHP       int    `yaml:"max_hp"`
	AC          int    `yaml:"ac"`
	AttackBonus int    `yaml:"attack_bonus"`
	DamageDice  string `yaml:"damage_dice"`
	XP          int    `yaml:"xp"`

	// Protectors lists template ids summoned when transgressions against
	// this NPC escalate. Empty falls back to the blueprint's default guards.
	Protectors []string   `yaml:"protectors"`
	Loot       *LootTable `yaml:"loot"`
}

// IsEssential reports whether t can never be killed or harmed.
func (t *Template) IsEssential() bool {
	return t.Protection == ProtectionEssential
}

// IsPlotSignificant reports whether t is protected from death but can be fought.
func (t *Template) IsPlotSignificant() bool {
	return t.Protection == ProtectionPlotSignificant
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHP >= 1, AC >= 1,
// XP >= 0, Protection is known, and DamageDice parses.
func (t *Template) Validate() error {
	if t.ID == "" {
		return errors.New("npc template: id must not be empty")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.MaxHP < 1 {
		return fmt.Errorf("npc template %q: max_hp must be >= 1", t.ID)
	}
	if t.AC < 1 {
		return fmt.Errorf("npc template %q: ac must be >= 1", t.ID)
	}
	if t.XP < 0 {
		return fmt.Errorf("npc template %q: xp must be >= 0", t.ID)
	}
	if !t.Protection.Valid() {
		return fmt.Errorf("npc template %q: unknown protection %q", t.ID, t.Protection)
	}
	if _, err := dice.Parse(t.DamageDice); err != nil {
		return fmt.Errorf("npc template %q: damage_dice: %w", t.ID, err)
	}
	if t.Loot != nil {
		if err := t.Loot.Validate(); err != nil {
			return fmt.Errorf("npc template %q: %w", t.ID, err)
		}
	}
	return nil
}

func (t *Template) normalize() {
	if t.Protection == "" {
		t.Protection = ProtectionNone
	}
	if t.DamageDice == "" {
		t.DamageDice = "1d4"
	}
}

// LoadTemplateFromBytes parses a single NPC template from raw YAML bytes.
// Unknown keys are rejected.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var tmpl Template
	if err := dec.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	tmpl.normalize()
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplatesFromBytes parses a multi-document YAML stream of templates.
func LoadTemplatesFromBytes(data []byte) ([]*Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var out []*Template
	for {
		var tmpl Template
		err := dec.Decode(&tmpl)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing template YAML: %w", err)
		}
		tmpl.normalize()
		if err := tmpl.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &tmpl)
	}
}
