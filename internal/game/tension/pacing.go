package tension

// Pacing tells narration how to pitch the next beat.
type Pacing struct {
	Phase          Phase  `json:"phase"`
	DMGuidance     string `json:"dm_guidance"`
	NarrationStyle string `json:"narration_style"`
}

var pacing = map[Phase]Pacing{
	PhaseCalm: {
		DMGuidance:     "Let the player explore. Offer hooks without pressure.",
		NarrationStyle: "relaxed, descriptive, sensory detail",
	},
	PhaseBuilding: {
		DMGuidance:     "Introduce complications and hint at danger.",
		NarrationStyle: "measured, foreshadowing",
	},
	PhaseTense: {
		DMGuidance:     "Raise stakes. Keep choices consequential and time short.",
		NarrationStyle: "tight, urgent, shorter sentences",
	},
	PhaseClimax: {
		DMGuidance:     "Focus on the immediate clash. Report outcomes exactly.",
		NarrationStyle: "punchy, kinetic, present tense",
	},
	PhaseResolution: {
		DMGuidance:     "Let the dust settle. Acknowledge consequences and open the next thread.",
		NarrationStyle: "reflective, slower cadence",
	},
}

// PacingFor returns the guidance for phase. Unknown phases get calm guidance.
func PacingFor(phase Phase) Pacing {
	p, ok := pacing[phase]
	if !ok {
		phase = PhaseCalm
		p = pacing[PhaseCalm]
	}
	p.Phase = phase
	return p
}
