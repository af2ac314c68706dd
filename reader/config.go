package reader

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// ChannelCount is the number of physical slots on the reader.
const ChannelCount = 5

// Timing holds the phase durations in whole seconds. One engine tick is one
// second of phase time.
type Timing struct {
	TempWait    int
	Incubation  int
	Reading     int
	AlertWindow int
}

// DefaultTiming matches the accelerated demo rig.
func DefaultTiming() Timing {
	return Timing{
		TempWait:    3,
		Incubation:  10,
		Reading:     2,
		AlertWindow: 20,
	}
}

// DefaultPositiveProbability is the chance that a secondary substance on a
// positive cassette also reads positive.
const DefaultPositiveProbability = 0.4

// Values filled into a configuration submission that leaves them blank.
const (
	DefaultRoute      = "Default Route"
	DefaultOperatorID = "OP-000"
)

// DefaultRecentRoutes and DefaultRecentOperators seed the quick-pick chips
// of the configuration modal.
var (
	DefaultRecentRoutes    = []string{"Farm A", "Route 12", "North Barn", "South Field"}
	DefaultRecentOperators = []string{"OP-001", "OP-042", "OP-103"}
)

// Config is handed to NewEngine at startup.
type Config struct {
	Timing              Timing
	Panels              []Panel
	PositiveProbability float64
	RecentRoutes        []string
	RecentOperators     []string
}

// DefaultConfig returns the built-in formats and timing.
func DefaultConfig() Config {
	return Config{
		Timing:              DefaultTiming(),
		Panels:              DefaultPanels(),
		PositiveProbability: DefaultPositiveProbability,
		RecentRoutes:        slices.Clone(DefaultRecentRoutes),
		RecentOperators:     slices.Clone(DefaultRecentOperators),
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	for _, d := range []struct {
		name string
		v    int
	}{
		{"temp wait", c.Timing.TempWait},
		{"incubation", c.Timing.Incubation},
		{"reading", c.Timing.Reading},
		{"alert window", c.Timing.AlertWindow},
	} {
		if d.v <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s duration must be a positive number of seconds, got %d", d.name, d.v))
		}
	}
	if c.PositiveProbability < 0 || c.PositiveProbability > 1 {
		err = multierr.Append(err, fmt.Errorf("positive probability must be within [0, 1], got %v", c.PositiveProbability))
	}
	if len(c.Panels) == 0 {
		err = multierr.Append(err, fmt.Errorf("at least one cassette format is required"))
	}
	seen := make(map[CassetteType]bool, len(c.Panels))
	for _, p := range c.Panels {
		if p.Type == "" {
			err = multierr.Append(err, fmt.Errorf("cassette format with empty type"))
			continue
		}
		if seen[p.Type] {
			err = multierr.Append(err, fmt.Errorf("cassette format %q declared twice", p.Type))
		}
		seen[p.Type] = true
		if len(p.Substances) == 0 {
			err = multierr.Append(err, fmt.Errorf("cassette format %q has no substances", p.Type))
		}
	}
	return err
}

func (c Config) panel(t CassetteType) (Panel, bool) {
	for _, p := range c.Panels {
		if p.Type == t {
			return p, true
		}
	}
	return Panel{}, false
}
