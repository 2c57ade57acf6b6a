package npc

import (
	"fmt"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
)

// CurrencyDrop is the inclusive gold range an NPC drops when defeated.
type CurrencyDrop struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// ItemDrop is one item entry with a percent drop chance.
type ItemDrop struct {
	Item          string `yaml:"item"`
	ChancePercent int    `yaml:"chance_percent"`
}

// LootTable defines the possible drops for an NPC template.
type LootTable struct {
	Currency *CurrencyDrop `yaml:"currency"`
	Items    []ItemDrop    `yaml:"items"`
}

// Validate checks the loot table invariants. An empty table is valid.
func (lt *LootTable) Validate() error {
	if lt.Currency != nil {
		if lt.Currency.Min < 0 {
			return fmt.Errorf("loot table: currency min must be >= 0, got %d", lt.Currency.Min)
		}
		if lt.Currency.Min > lt.Currency.Max {
			return fmt.Errorf("loot table: currency min (%d) must be <= max (%d)", lt.Currency.Min, lt.Currency.Max)
		}
	}
	for i, item := range lt.Items {
		if item.Item == "" {
			return fmt.Errorf("loot table: item[%d] must have a non-empty item", i)
		}
		if item.ChancePercent < 1 || item.ChancePercent > 100 {
			return fmt.Errorf("loot table: item[%d] chance_percent must be 1-100, got %d", i, item.ChancePercent)
		}
	}
	return nil
}

// LootResult holds the gold and items dropped by one defeated NPC.
type LootResult struct {
	Gold  int      `json:"gold"`
	Items []string `json:"items,omitempty"`
}

// GenerateLoot rolls lt using src.
//
// Precondition: lt passed Validate.
// Postcondition: Gold is within the currency range when one is set.
func GenerateLoot(lt *LootTable, src dice.Source) LootResult {
	var result LootResult
	if lt == nil {
		return result
	}
	if c := lt.Currency; c != nil && c.Max > 0 {
		result.Gold = c.Min + src.Intn(c.Max-c.Min+1)
	}
	for _, item := range lt.Items {
		if src.Intn(100) < item.ChancePercent {
			result.Items = append(result.Items, item.Item)
		}
	}
	return result
}
