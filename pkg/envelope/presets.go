package envelope

// Preset curves shaped after a slow whale call: a soft swell, a long body and
// a tail that the synthesizer's fade-out finishes off. They are shared and
// immutable.
var (
	defaultVolume = MustNew(
		Key{T: 0, V: 0},
		Key{T: 0.15, V: 1},
		Key{T: 0.7, V: 0.85},
		Key{T: 1, V: 0.35},
	)
	defaultModulation = MustNew(
		Key{T: 0, V: 0.2},
		Key{T: 0.4, V: 1},
		Key{T: 1, V: 0.5},
	)
	defaultOrganic = MustNew(
		Key{T: 0, V: 0.3},
		Key{T: 0.5, V: 1},
		Key{T: 1, V: 0.6},
	)
)

// DefaultVolume returns the default volume envelope.
func DefaultVolume() *Curve { return defaultVolume }

// DefaultModulation returns the default modulation-depth envelope.
func DefaultModulation() *Curve { return defaultModulation }

// DefaultOrganic returns the default organic-drift envelope.
func DefaultOrganic() *Curve { return defaultOrganic }
