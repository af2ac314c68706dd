package reader

// TestConfig is what the operator submits from the configuration modal.
type TestConfig struct {
	Scenario     Scenario
	CassetteType CassetteType
	Route        string
	OperatorID   string
	Processing   Processing
}

// Cassette describes a physical insertion.
type Cassette struct {
	Type    CassetteType
	Outcome Outcome
	// Used marks a cassette that has already been read.
	Used bool
}

// channel is one physical slot. Only the engine mutates it.
type channel struct {
	id    int
	state State

	cassettePresent bool
	cassetteType    CassetteType
	outcome         Outcome
	groupID         string

	config      TestConfig
	currentTest int
	results     []TestResult
	groupResult GroupResult

	incubationTotal   int
	incubationElapsed int

	// errorMessage is only meaningful in StateError.
	errorMessage string
}

func newChannel(id, incubationTotal int) *channel {
	return &channel{id: id, state: StateEmpty, incubationTotal: incubationTotal}
}

// reset returns the channel to its baseline. The caller cancels the timer.
func (c *channel) reset() {
	*c = *newChannel(c.id, c.incubationTotal)
}

// setState moves to s and drops fields scoped to the previous state.
func (c *channel) setState(s State) {
	c.state = s
	if s != StateError {
		c.errorMessage = ""
	}
}

func (c *channel) expectedType() CassetteType {
	if len(c.results) > 0 {
		return c.results[0].CassetteType
	}
	return c.cassetteType
}

// ChannelSnapshot is a read-only copy of a channel for presentation.
type ChannelSnapshot struct {
	ID                  int
	State               State
	CassettePresent     bool
	CassetteType        CassetteType
	Scenario            Scenario
	Processing          Processing
	Route               string
	OperatorID          string
	CurrentTestNumber   int
	TestResults         []TestResult
	GroupResult         GroupResult
	SimulatedOutcome    Outcome
	GroupID             string
	IncubationTotal     int
	IncubationRemaining int
	IncubationElapsed   int
	AlertRemaining      int
	ErrorMessage        string
	Timer               Countdown
}

func (c *channel) snapshot(timer Countdown, live bool) ChannelSnapshot {
	s := ChannelSnapshot{
		ID:                c.id,
		State:             c.state,
		CassettePresent:   c.cassettePresent,
		CassetteType:      c.cassetteType,
		Scenario:          c.config.Scenario,
		Processing:        c.config.Processing,
		Route:             c.config.Route,
		OperatorID:        c.config.OperatorID,
		CurrentTestNumber: c.currentTest,
		GroupResult:       c.groupResult,
		SimulatedOutcome:  c.outcome,
		GroupID:           c.groupID,
		IncubationTotal:   c.incubationTotal,
		IncubationElapsed: c.incubationElapsed,
		ErrorMessage:      c.errorMessage,
	}
	if len(c.results) > 0 {
		s.TestResults = make([]TestResult, len(c.results))
		for i, r := range c.results {
			s.TestResults[i] = r.clone()
		}
	}
	if live {
		s.Timer = timer
	}
	switch {
	case live && timer.Kind == TimerIncubation:
		s.IncubationRemaining = timer.Remaining
	case c.state == StateIncubationAlert:
		s.IncubationRemaining = max(c.incubationTotal-c.incubationElapsed, 0)
	}
	if live && timer.Kind == TimerAlert {
		s.AlertRemaining = timer.Remaining
	}
	return s
}

// Indicator is the presentation class for the channel card.
func (s ChannelSnapshot) Indicator() string {
	switch s.State {
	case StateEmpty:
		return "empty"
	case StateDetected, StateReadyForTestN, StateConfiguring:
		return "detected"
	case StateError, StateErrorUsed, StateErrorUsedConfirmation, StateErrorTypeMismatch:
		return "error"
	case StateWaitingTemp, StateIncubating, StateReading:
		return "processing"
	case StateIncubationAlert:
		return "alert"
	case StateAwaitingConfirmation, StateWaitingForSwap:
		return "waiting"
	case StateResult:
		if n := len(s.TestResults); n > 0 && s.TestResults[n-1].Overall == OutcomePositive {
			return "result-positive"
		}
		return "result-negative"
	case StateComplete:
		if s.Scenario.Control() {
			return "control"
		}
		if s.GroupResult != GroupUnset {
			return "complete-" + string(s.GroupResult)
		}
	}
	return ""
}

// Readings flattens the snapshot for sensor and DoCommand responses.
func (s ChannelSnapshot) Readings() map[string]interface{} {
	results := make([]interface{}, len(s.TestResults))
	for i, r := range s.TestResults {
		subs := make([]interface{}, len(r.Substances))
		for j, sub := range r.Substances {
			subs[j] = map[string]interface{}{
				"name":   sub.Name,
				"label":  ShortLabel(sub.Name),
				"result": string(sub.Result),
			}
		}
		results[i] = map[string]interface{}{
			"test_number":   r.TestNumber,
			"cassette_type": string(r.CassetteType),
			"overall":       string(r.Overall),
			"substances":    subs,
		}
	}
	return map[string]interface{}{
		"channel":              s.ID,
		"state":                string(s.State),
		"indicator":            s.Indicator(),
		"cassette_present":     s.CassettePresent,
		"cassette_type":        string(s.CassetteType),
		"scenario":             string(s.Scenario),
		"processing":           string(s.Processing),
		"route":                s.Route,
		"operator_id":          s.OperatorID,
		"current_test_number":  s.CurrentTestNumber,
		"test_results":         results,
		"group_result":         string(s.GroupResult),
		"simulated_outcome":    string(s.SimulatedOutcome),
		"group_id":             s.GroupID,
		"incubation_total":     s.IncubationTotal,
		"incubation_remaining": s.IncubationRemaining,
		"incubation_elapsed":   s.IncubationElapsed,
		"alert_remaining":      s.AlertRemaining,
		"error_message":        s.ErrorMessage,
		"timer_kind":           string(s.Timer.Kind),
		"timer_remaining":      s.Timer.Remaining,
	}
}
