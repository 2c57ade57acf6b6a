package combat

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// State is the combat state machine state.
type State string

const (
	StateNoCombat State = "no_combat"
	StateActive   State = "active"
	StateEnded    State = "ended"
)

// Outcome is how an ended combat was resolved.
type Outcome string

const (
	OutcomeNone           Outcome = "none"
	OutcomeVictory        Outcome = "victory"
	OutcomePlayerDefeated Outcome = "player_defeated"
	OutcomeFled           Outcome = "fled"
)

var (
	// ErrNoEnemies is returned when a session would start without opponents.
	ErrNoEnemies = errors.New("combat requires at least one enemy")
	// ErrNotActive is returned when a transition needs an active session.
	ErrNotActive = errors.New("combat is not active")
)

// Session is one combat between a player character and a set of enemies.
//
// Invariant: CurrentTurn is always a member of TurnOrder and TurnOrder[0] is
// the player. Once State is StateEnded the session is Closed and never
// mutated again.
type Session struct {
	CombatID    string      `json:"combat_id"`
	CampaignID  string      `json:"campaign_id"`
	CharacterID string      `json:"character_id"`
	State       State       `json:"state"`
	Outcome     Outcome     `json:"outcome"`
	Round       int         `json:"round"`
	TurnOrder   []string    `json:"turn_order"`
	CurrentTurn string      `json:"current_turn"`
	Enemies     []Combatant `json:"enemies"`
	CombatOver  bool        `json:"combat_over"`
	XPAwarded   bool        `json:"xp_awarded"`
	Closed      bool        `json:"closed"`
	Version     int64       `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewSession starts an active combat for characterID against enemies.
//
// Precondition: enemies is non-empty and ids are unique and differ from characterID.
// Postcondition: State == StateActive, Round == 1, TurnOrder == [characterID, enemy ids...],
// CurrentTurn == characterID.
func NewSession(campaignID, characterID string, enemies []Combatant, now time.Time) (*Session, error) {
	if len(enemies) == 0 {
		return nil, ErrNoEnemies
	}
	s := &Session{
		CombatID:    uuid.NewString(),
		CampaignID:  campaignID,
		CharacterID: characterID,
		State:       StateActive,
		Outcome:     OutcomeNone,
		Round:       1,
		TurnOrder:   []string{characterID},
		CurrentTurn: characterID,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := s.AddEnemies(enemies...); err != nil {
		return nil, err
	}
	return s, nil
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.TurnOrder = slices.Clone(s.TurnOrder)
	out.Enemies = slices.Clone(s.Enemies)
	return &out
}

// IsActive reports whether s is an active combat.
func (s *Session) IsActive() bool {
	return s != nil && s.State == StateActive && !s.CombatOver
}

// AddEnemies appends enemies to an active session's roster and turn order.
// Enemies whose id is already present are skipped.
func (s *Session) AddEnemies(enemies ...Combatant) error {
	if s.State != StateActive {
		return ErrNotActive
	}
	for _, e := range enemies {
		if e.ID == "" || e.ID == s.CharacterID {
			return fmt.Errorf("invalid enemy id %q", e.ID)
		}
		if s.Enemy(e.ID) != nil {
			continue
		}
		if e.Kind == KindPlayer {
			return fmt.Errorf("enemy %q cannot be a player", e.ID)
		}
		s.Enemies = append(s.Enemies, e)
		s.TurnOrder = append(s.TurnOrder, e.ID)
	}
	return nil
}

// Enemy returns the enemy with id, or nil.
func (s *Session) Enemy(id string) *Combatant {
	for i := range s.Enemies {
		if s.Enemies[i].ID == id {
			return &s.Enemies[i]
		}
	}
	return nil
}

// LivingEnemies returns copies of every enemy still able to fight, in turn order.
func (s *Session) LivingEnemies() []Combatant {
	var out []Combatant
	for _, e := range s.Enemies {
		if e.CanAct() {
			out = append(out, e)
		}
	}
	return out
}

// allEnemiesDown reports whether no enemy can still fight.
func (s *Session) allEnemiesDown() bool {
	return len(s.LivingEnemies()) == 0
}

// end transitions s to StateEnded with outcome.
func (s *Session) end(outcome Outcome) {
	s.State = StateEnded
	s.Outcome = outcome
	s.CombatOver = true
	s.Closed = true
	s.CurrentTurn = s.CharacterID
}

// awardXP returns the experience for the defeated enemies the first time it is
// called after victory and 0 on every later call.
func (s *Session) awardXP() int {
	if s.Outcome != OutcomeVictory || s.XPAwarded {
		return 0
	}
	s.XPAwarded = true
	total := 0
	for _, e := range s.Enemies {
		total += e.XP
	}
	return total
}

// Casualties splits defeated enemies into killed and knocked-out ids.
func (s *Session) Casualties() (killed, unconscious []string) {
	for _, e := range s.Enemies {
		switch {
		case !e.Alive:
			killed = append(killed, e.ID)
		case e.Unconscious:
			unconscious = append(unconscious, e.ID)
		}
	}
	return killed, unconscious
}
