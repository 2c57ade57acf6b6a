package character

// levelThresholds[i] is the XP required to reach level i+1.
var levelThresholds = []int{
	0, 300, 900, 2700, 6500, 14000, 23000, 34000, 48000, 64000,
	85000, 100000, 120000, 140000, 165000, 195000, 225000, 265000, 305000, 355000,
}

// MaxLevel is the highest attainable level.
const MaxLevel = 20

// LevelForXP returns the level reached with xp experience points.
//
// Postcondition: 1 <= result <= MaxLevel.
func LevelForXP(xp int) int {
	level := 1
	for i, threshold := range levelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// LevelFloor returns the XP at which level begins.
func LevelFloor(level int) int {
	if level < 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelThresholds[level-1]
}

// ProficiencyBonus returns the proficiency bonus for level.
func ProficiencyBonus(level int) int {
	if level < 1 {
		level = 1
	}
	return 2 + (level-1)/4
}

// Delta is a change to a character produced by one pipeline stage.
//
// HPChange, XPChange and GoldChange are signed; Apply keeps every field within its invariant.
type Delta struct {
	HPChange      int      `json:"hp_change,omitempty"`
	XPChange      int      `json:"xp_change,omitempty"`
	GoldChange    int      `json:"gold_change,omitempty"`
	ItemsAdded    []string `json:"items_added,omitempty"`
	InjuriesAdded int      `json:"injuries_added,omitempty"`
	NewLevel      int      `json:"new_level,omitempty"`
	Defeated      bool     `json:"defeated,omitempty"`
}

// IsZero reports whether d changes nothing.
func (d Delta) IsZero() bool {
	return d.HPChange == 0 && d.XPChange == 0 && d.GoldChange == 0 && len(d.ItemsAdded) == 0 &&
		d.InjuriesAdded == 0 && d.NewLevel == 0 && !d.Defeated
}

// Merge combines two deltas. The later NewLevel wins.
func (d Delta) Merge(o Delta) Delta {
	out := Delta{
		HPChange:      d.HPChange + o.HPChange,
		XPChange:      d.XPChange + o.XPChange,
		GoldChange:    d.GoldChange + o.GoldChange,
		ItemsAdded:    append(append([]string(nil), d.ItemsAdded...), o.ItemsAdded...),
		InjuriesAdded: d.InjuriesAdded + o.InjuriesAdded,
		NewLevel:      d.NewLevel,
		Defeated:      d.Defeated || o.Defeated,
	}
	if o.NewLevel != 0 {
		out.NewLevel = o.NewLevel
	}
	if len(out.ItemsAdded) == 0 {
		out.ItemsAdded = nil
	}
	return out
}

// Apply returns a copy of s with d applied.
//
// Postcondition: 0 <= HP <= MaxHP, XP >= 0, Gold >= 0, Level == LevelForXP(XP).
func Apply(s State, d Delta) State {
	out := s.Clone()
	out.HP = min(max(out.HP+d.HPChange, 0), out.MaxHP)
	out.XP = max(out.XP+d.XPChange, 0)
	out.Gold = max(out.Gold+d.GoldChange, 0)
	out.Inventory = append(out.Inventory, d.ItemsAdded...)
	out.Injuries += d.InjuriesAdded
	out.Level = LevelForXP(out.XP)
	return out
}

// AwardXP returns the delta granting xp experience, reporting a new level when one is reached.
//
// Precondition: xp >= 0.
func AwardXP(s State, xp int) Delta {
	if xp <= 0 {
		return Delta{}
	}
	d := Delta{XPChange: xp}
	if lvl := LevelForXP(s.XP + xp); lvl > LevelForXP(s.XP) {
		d.NewLevel = lvl
	}
	return d
}

// DefeatPenalty returns the non-fatal consequences of losing a fight: HP restored to
// healPercent of max (at least 1), one more injury, and penaltyPercent of the XP earned
// above the current level floor removed. XP never drops below the level floor.
//
// Precondition: 0 < healPercent <= 100; 0 <= penaltyPercent <= 100.
func DefeatPenalty(s State, healPercent, penaltyPercent int) Delta {
	restored := max(1, s.MaxHP*healPercent/100)
	progress := max(s.XP-LevelFloor(LevelForXP(s.XP)), 0)
	return Delta{
		HPChange:      restored - s.HP,
		XPChange:      -(progress * penaltyPercent / 100),
		InjuriesAdded: 1,
		Defeated:      true,
	}
}
