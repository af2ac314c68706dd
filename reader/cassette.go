package reader

import (
	"unicode"
	"unicode/utf8"
)

// CassetteType names a cassette format. The format fixes the substance panel.
type CassetteType string

// Built-in cassette formats.
const (
	Cassette2BC   CassetteType = "2BC"
	Cassette3BTC  CassetteType = "3BTC"
	Cassette4BTCS CassetteType = "4BTCS"
)

// Substance names used by the built-in panels.
const (
	BetaLactams    = "Beta-lactams"
	Tetracyclines  = "Tetracyclines"
	Cephalosporins = "Cephalosporins"
	Sulfonamides   = "Sulfonamides"
)

// Panel is the ordered list of substances a cassette format evaluates.
type Panel struct {
	Type       CassetteType
	Substances []string
}

// DefaultPanels returns the built-in cassette formats.
func DefaultPanels() []Panel {
	return []Panel{
		{Type: Cassette2BC, Substances: []string{BetaLactams, Cephalosporins}},
		{Type: Cassette3BTC, Substances: []string{BetaLactams, Tetracyclines, Cephalosporins}},
		{Type: Cassette4BTCS, Substances: []string{BetaLactams, Tetracyclines, Cephalosporins, Sulfonamides}},
	}
}

var shortLabels = map[string]string{
	BetaLactams:    "B",
	Tetracyclines:  "T",
	Cephalosporins: "C",
	Sulfonamides:   "S",
}

// ShortLabel returns the one-letter line label for a substance, falling back
// to the first letter of unknown names.
func ShortLabel(substance string) string {
	if l, ok := shortLabels[substance]; ok {
		return l
	}
	r, size := utf8.DecodeRuneInString(substance)
	if r == utf8.RuneError && size <= 1 {
		return ""
	}
	return string(unicode.ToUpper(r))
}

// Outcome is the simulated reading a cassette will produce.
type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNegative Outcome = "negative"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool { return o == OutcomePositive || o == OutcomeNegative }

// Scenario selects the test flow.
type Scenario string

const (
	ScenarioTest          Scenario = "test"
	ScenarioPosControl    Scenario = "pos_control"
	ScenarioAnimalControl Scenario = "animal_control"
)

// Valid reports whether s is a known scenario.
func (s Scenario) Valid() bool {
	return s == ScenarioTest || s == ScenarioPosControl || s == ScenarioAnimalControl
}

// Control reports whether s is a single-shot control flow.
func (s Scenario) Control() bool {
	return s == ScenarioPosControl || s == ScenarioAnimalControl
}

// Processing selects whether a test incubates before reading.
type Processing string

const (
	ProcessingReadOnly     Processing = "read_only"
	ProcessingReadIncubate Processing = "read_incubate"
)

// Valid reports whether p is a known processing mode.
func (p Processing) Valid() bool { return p == ProcessingReadOnly || p == ProcessingReadIncubate }

// GroupResult is the final classification of a test group.
type GroupResult string

const (
	GroupUnset        GroupResult = ""
	GroupNegative     GroupResult = "negative"
	GroupPositive     GroupResult = "positive"
	GroupInconclusive GroupResult = "inconclusive"
)

// SubstanceResult is the reading of one line on a cassette.
type SubstanceResult struct {
	Name   string
	Result Outcome
}

// TestResult records one completed reading. It is never modified after it is
// appended to a channel.
type TestResult struct {
	Substances   []SubstanceResult
	Overall      Outcome
	TestNumber   int
	CassetteType CassetteType
}

func (r TestResult) clone() TestResult {
	r.Substances = append([]SubstanceResult(nil), r.Substances...)
	return r
}
