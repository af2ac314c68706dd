// Package reader is the state engine of the five-channel cassette reader.
//
// An Engine owns the channel registry, the timer scheduler and the modal
// arbiter. It is not safe for concurrent use; callers serialise commands and
// ticks. Every command passes through Guard before it touches a channel, and
// rejected commands leave the engine unchanged.
package reader

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.viam.com/rdk/logging"
)

// Transition is published whenever a channel changes state.
type Transition struct {
	ChannelID   int
	From        State
	To          State
	Cause       string
	GroupResult GroupResult
}

// ModalSnapshot is the modal ownership record.
type ModalSnapshot struct {
	Active *Modal
	Queue  []Modal
}

// Option customises an Engine.
type Option func(*Engine)

// WithEvaluator replaces the simulated evaluator.
func WithEvaluator(ev Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithGroupIDs overrides how group ids are minted.
func WithGroupIDs(next func() string) Option {
	return func(e *Engine) { e.newGroupID = next }
}

// Engine drives all five channels.
type Engine struct {
	cfg       Config
	logger    logging.Logger
	evaluator Evaluator

	channels [ChannelCount]*channel
	timers   *Scheduler
	modals   *ModalArbiter

	observers  []func(Transition)
	newGroupID func() string
}

// NewEngine validates cfg and creates the channel registry.
func NewEngine(cfg Config, logger logging.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reader config: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		timers:     NewScheduler(),
		modals:     NewModalArbiter(),
		newGroupID: uuid.NewString,
	}
	for i := range e.channels {
		e.channels[i] = newChannel(i+1, cfg.Timing.Incubation)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = NewSimulatedEvaluator(cfg.PositiveProbability, nil)
	}
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// OnTransition registers fn to be called after every state change.
func (e *Engine) OnTransition(fn func(Transition)) {
	e.observers = append(e.observers, fn)
}

// Channel returns a snapshot of one channel.
func (e *Engine) Channel(id int) (ChannelSnapshot, error) {
	ch, err := e.lookup(id)
	if err != nil {
		return ChannelSnapshot{}, err
	}
	return e.snapshot(ch), nil
}

// Channels returns snapshots of every channel in id order.
func (e *Engine) Channels() []ChannelSnapshot {
	out := make([]ChannelSnapshot, 0, ChannelCount)
	for _, ch := range e.channels {
		out = append(out, e.snapshot(ch))
	}
	return out
}

// Modal returns the modal ownership record.
func (e *Engine) Modal() ModalSnapshot {
	var s ModalSnapshot
	if m, ok := e.modals.Active(); ok {
		s.Active = &m
	}
	s.Queue = e.modals.Queued()
	return s
}

// CanInsert reports whether channel id currently accepts a cassette.
func (e *Engine) CanInsert(id int) bool {
	ch, err := e.lookup(id)
	return err == nil && CanInsertCassette(ch.state)
}

// CanRemove reports whether channel id currently holds a removable cassette.
func (e *Engine) CanRemove(id int) bool {
	ch, err := e.lookup(id)
	return err == nil && CanRemoveCassette(ch.state, ch.cassettePresent)
}

// Insert handles a cassette being pushed into the slot.
func (e *Engine) Insert(id int, c Cassette) error {
	ch, err := e.admit(CmdInsert, id)
	if err != nil {
		return err
	}
	if _, ok := e.cfg.panel(c.Type); !ok {
		return fmt.Errorf("%w: unknown cassette type %q", ErrInvalidArgument, c.Type)
	}
	if !c.Outcome.Valid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidArgument, c.Outcome)
	}

	switch ch.state {
	case StateEmpty:
		ch.cassettePresent = true
		ch.cassetteType = c.Type
		ch.outcome = c.Outcome
		ch.currentTest = 0
		ch.groupID = e.newGroupID()
		if c.Used {
			e.move(ch, StateErrorUsed, CmdInsert)
			return nil
		}
		e.move(ch, StateDetected, CmdInsert)

	case StateWaitingForSwap:
		ch.cassettePresent = true
		ch.outcome = c.Outcome
		switch expected := ch.expectedType(); {
		case c.Used:
			e.move(ch, StateErrorUsedConfirmation, CmdInsert)
		case c.Type != expected:
			e.logger.Debugf("channel %d: expected %s cassette, got %s", ch.id, expected, c.Type)
			e.move(ch, StateErrorTypeMismatch, CmdInsert)
		default:
			ch.cassetteType = c.Type
			e.move(ch, StateReadyForTestN, CmdInsert)
		}

	case StateIncubationAlert:
		ch.cassettePresent = true
		e.timers.Cancel(ch.id)
		e.move(ch, StateIncubating, CmdInsert)
		e.startIncubation(ch)
	}
	return nil
}

// Remove handles a cassette being pulled out of the slot.
func (e *Engine) Remove(id int) error {
	ch, err := e.admit(CmdRemove, id)
	if err != nil {
		return err
	}
	if n := e.modals.Prune(ch.id); n > 0 {
		e.logger.Debugf("channel %d: dropped %d queued modal(s)", ch.id, n)
	}

	switch ch.state {
	case StateDetected, StateWaitingTemp, StateErrorUsed:
		e.resetChannel(ch, CmdRemove)

	case StateConfiguring:
		closed := e.modals.Owns(ch.id, ModalConfig) && e.modals.Close()
		e.resetChannel(ch, CmdRemove)
		if closed {
			e.drainModals()
		}

	case StateIncubating:
		e.timers.Cancel(ch.id)
		ch.cassettePresent = false
		e.move(ch, StateIncubationAlert, CmdRemove)
		e.timers.Start(ch.id, TimerAlert, e.cfg.Timing.AlertWindow)

	case StateReading:
		e.timers.Cancel(ch.id)
		ch.cassettePresent = false
		e.fail(ch, MsgReadingInterrupted, CmdRemove)

	case StateResult:
		if e.modals.Owns(ch.id, ModalDecision) {
			// the operator still has to answer the open decision
			ch.cassettePresent = false
			return nil
		}
		e.resetChannel(ch, CmdRemove)

	case StateComplete:
		active, ok := e.modals.Active()
		closed := ok && active.ChannelID == ch.id && e.modals.Close()
		e.resetChannel(ch, CmdRemove)
		if closed {
			e.drainModals()
		}

	case StateAwaitingConfirmation, StateReadyForTestN, StateErrorTypeMismatch, StateErrorUsedConfirmation:
		ch.cassettePresent = false
		e.move(ch, StateWaitingForSwap, CmdRemove)

	default:
		ch.cassettePresent = false
	}
	return nil
}

// Configure opens the configuration modal for a detected cassette.
func (e *Engine) Configure(id int) error {
	ch, err := e.admit(CmdConfigure, id)
	if err != nil {
		return err
	}
	e.move(ch, StateConfiguring, CmdConfigure)
	e.modals.Open(Modal{Kind: ModalConfig, ChannelID: ch.id})
	return nil
}

// CancelConfiguration closes the configuration modal without starting a test.
func (e *Engine) CancelConfiguration(id int) error {
	ch, err := e.admit(CmdCancelConfig, id)
	if err != nil {
		return err
	}
	e.modals.Close()
	if ch.state == StateConfiguring {
		e.move(ch, StateDetected, CmdCancelConfig)
	}
	e.drainModals()
	return nil
}

// StartTest submits the configuration modal and starts test 1.
func (e *Engine) StartTest(id int, tc TestConfig) error {
	ch, err := e.admit(CmdStartTest, id)
	if err != nil {
		return err
	}
	tc = e.fillTestConfig(ch, tc)
	if err := e.validateTestConfig(tc); err != nil {
		return err
	}
	e.modals.Close()
	ch.config = tc
	ch.cassetteType = tc.CassetteType
	ch.currentTest = 1
	e.startProcessing(ch, CmdStartTest)
	e.drainModals()
	return nil
}

// StartNextTest starts the next test of a confirmation sequence.
func (e *Engine) StartNextTest(id int) error {
	ch, err := e.admit(CmdStartNextTest, id)
	if err != nil {
		return err
	}
	ch.currentTest++
	e.startProcessing(ch, CmdStartNextTest)
	return nil
}

// DecisionAbort abandons the confirmation sequence.
func (e *Engine) DecisionAbort(id int) error {
	ch, err := e.admit(CmdDecisionAbort, id)
	if err != nil {
		return err
	}
	e.modals.Close()
	if ch.cassettePresent {
		ch.groupResult = GroupInconclusive
		e.move(ch, StateComplete, CmdDecisionAbort)
	} else {
		e.resetChannel(ch, CmdDecisionAbort)
	}
	e.drainModals()
	return nil
}

// DecisionContinue proceeds to the next confirmation test.
func (e *Engine) DecisionContinue(id int) error {
	ch, err := e.admit(CmdDecisionContinue, id)
	if err != nil {
		return err
	}
	e.modals.Close()
	ch.incubationElapsed = 0
	if ch.cassettePresent {
		e.move(ch, StateAwaitingConfirmation, CmdDecisionContinue)
	} else {
		e.move(ch, StateWaitingForSwap, CmdDecisionContinue)
	}
	e.drainModals()
	return nil
}

// Stop asks the operator to confirm abandoning a channel waiting for a swap.
func (e *Engine) Stop(id int) error {
	ch, err := e.admit(CmdStop, id)
	if err != nil {
		return err
	}
	e.modals.Open(Modal{Kind: ModalStopConfirm, ChannelID: ch.id})
	return nil
}

// StopConfirm resets the channel.
func (e *Engine) StopConfirm(id int) error {
	ch, err := e.admit(CmdStopConfirm, id)
	if err != nil {
		return err
	}
	e.modals.Close()
	e.resetChannel(ch, CmdStopConfirm)
	e.drainModals()
	return nil
}

// StopCancel closes the stop confirmation.
func (e *Engine) StopCancel(id int) error {
	if _, err := e.admit(CmdStopCancel, id); err != nil {
		return err
	}
	e.modals.Close()
	e.drainModals()
	return nil
}

// ViewDetails opens the detail modal of a completed channel.
func (e *Engine) ViewDetails(id int) error {
	ch, err := e.admit(CmdViewDetails, id)
	if err != nil {
		return err
	}
	e.modals.Open(Modal{Kind: ModalDetail, ChannelID: ch.id})
	return nil
}

// CloseDetail closes the detail modal.
func (e *Engine) CloseDetail(id int) error {
	if _, err := e.admit(CmdCloseDetail, id); err != nil {
		return err
	}
	e.modals.Close()
	e.drainModals()
	return nil
}

// Retry repeats the interrupted test once a fresh cassette is inserted.
func (e *Engine) Retry(id int) error {
	ch, err := e.admit(CmdRetry, id)
	if err != nil {
		return err
	}
	ch.cassettePresent = false
	ch.currentTest = max(ch.currentTest-1, 0)
	e.move(ch, StateWaitingForSwap, CmdRetry)
	return nil
}

// Abort discards the whole group of a failed channel.
func (e *Engine) Abort(id int) error {
	ch, err := e.admit(CmdAbort, id)
	if err != nil {
		return err
	}
	e.resetChannel(ch, CmdAbort)
	return nil
}

// Tick advances every live countdown by one second.
func (e *Engine) Tick(ctx context.Context) {
	for _, ev := range e.timers.Advance() {
		ch := e.channels[ev.ChannelID-1]
		switch ev.Kind {
		case TimerTempWait:
			if ev.Expired {
				e.move(ch, StateIncubating, string(TimerTempWait))
				e.startIncubation(ch)
			}
		case TimerIncubation:
			ch.incubationElapsed++
			if ev.Expired {
				ch.incubationElapsed = 0
				e.move(ch, StateReading, string(TimerIncubation))
				e.timers.Start(ch.id, TimerReading, e.cfg.Timing.Reading)
			}
		case TimerReading:
			if ev.Expired {
				e.completeReading(ctx, ch)
			}
		case TimerAlert:
			if ev.Expired {
				e.fail(ch, MsgNotReinserted, string(TimerAlert))
			}
		}
	}
}

func (e *Engine) startProcessing(ch *channel, cause Command) {
	if ch.config.Processing == ProcessingReadOnly {
		e.move(ch, StateReading, cause)
		e.timers.Start(ch.id, TimerReading, e.cfg.Timing.Reading)
		return
	}
	e.move(ch, StateWaitingTemp, cause)
	e.timers.Start(ch.id, TimerTempWait, e.cfg.Timing.TempWait)
}

// startIncubation resumes from whatever incubation time has already elapsed.
func (e *Engine) startIncubation(ch *channel) {
	e.timers.Start(ch.id, TimerIncubation, ch.incubationTotal-ch.incubationElapsed)
}

func (e *Engine) completeReading(ctx context.Context, ch *channel) {
	panel, _ := e.cfg.panel(ch.cassetteType)
	subs, err := e.evaluator.Evaluate(ctx, panel, ch.outcome)
	if err != nil {
		e.fail(ch, msgReadingFailed+err.Error(), string(TimerReading))
		return
	}
	overall := Overall(subs)
	ch.results = append(ch.results, TestResult{
		Substances:   subs,
		Overall:      overall,
		TestNumber:   ch.currentTest,
		CassetteType: ch.cassetteType,
	})

	if ch.config.Scenario.Control() {
		e.complete(ch, GroupResult(overall))
		return
	}

	switch ch.currentTest {
	case 1:
		if overall == OutcomeNegative {
			e.complete(ch, GroupNegative)
			return
		}
		e.move(ch, StateResult, string(TimerReading))
		e.requestDecision(ch, VariantConfirm)
	case 2:
		if overall == OutcomePositive {
			e.complete(ch, GroupPositive)
			return
		}
		e.move(ch, StateResult, string(TimerReading))
		e.requestDecision(ch, VariantTiebreak)
	default:
		e.complete(ch, GroupResult(overall))
	}
}

func (e *Engine) complete(ch *channel, result GroupResult) {
	ch.groupResult = result
	e.move(ch, StateComplete, string(TimerReading))
}

func (e *Engine) requestDecision(ch *channel, variant DecisionVariant) {
	if !e.modals.Request(Modal{Kind: ModalDecision, ChannelID: ch.id, Variant: variant}) {
		e.logger.Debugf("channel %d: decision %s queued behind open modal", ch.id, variant)
	}
}

// drainModals surfaces the next queued modal whose channel still needs it.
func (e *Engine) drainModals() {
	m, ok := e.modals.Drain(func(m Modal) bool {
		if m.Kind != ModalDecision {
			return true
		}
		return e.channels[m.ChannelID-1].state == StateResult
	})
	if ok {
		e.logger.Debugf("channel %d: showing queued %s modal", m.ChannelID, m.Kind)
	}
}

func (e *Engine) fail(ch *channel, msg string, cause any) {
	e.move(ch, StateError, cause)
	ch.errorMessage = msg
	e.logger.Warnf("channel %d: %s", ch.id, msg)
}

func (e *Engine) resetChannel(ch *channel, cause any) {
	e.timers.Cancel(ch.id)
	from := ch.state
	ch.reset()
	e.publish(ch, from, cause)
}

func (e *Engine) move(ch *channel, to State, cause any) {
	from := ch.state
	ch.setState(to)
	e.publish(ch, from, cause)
}

func (e *Engine) publish(ch *channel, from State, cause any) {
	if from == ch.state {
		return
	}
	t := Transition{
		ChannelID:   ch.id,
		From:        from,
		To:          ch.state,
		Cause:       fmt.Sprint(cause),
		GroupResult: ch.groupResult,
	}
	e.logger.Debugf("channel %d: %s -> %s (%s)", t.ChannelID, t.From, t.To, t.Cause)
	for _, fn := range e.observers {
		fn(t)
	}
}

func (e *Engine) lookup(id int) (*channel, error) {
	if id < 1 || id > ChannelCount {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return e.channels[id-1], nil
}

// admit looks up the channel and runs the guard for cmd.
func (e *Engine) admit(cmd Command, id int) (*channel, error) {
	ch, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	gc := GuardContext{ChannelID: ch.id, State: ch.state, CassettePresent: ch.cassettePresent}
	if m, ok := e.modals.Active(); ok {
		gc.Modal = &m
	}
	if res := Guard(cmd, gc); !res.Allowed {
		e.logger.Debugf("channel %d: %s rejected: %s", ch.id, cmd, res.Reason)
		return nil, &RejectedError{Command: cmd, ChannelID: ch.id, State: ch.state, Reason: res.Reason}
	}
	return ch, nil
}

// fillTestConfig supplies what the operator left blank: a sample test on
// the detected cassette, the default route and the anonymous operator.
func (e *Engine) fillTestConfig(ch *channel, tc TestConfig) TestConfig {
	if tc.Scenario == "" {
		tc.Scenario = ScenarioTest
	}
	if tc.CassetteType == "" {
		tc.CassetteType = ch.cassetteType
	}
	if tc.Route == "" {
		tc.Route = DefaultRoute
	}
	if tc.OperatorID == "" {
		tc.OperatorID = DefaultOperatorID
	}
	return tc
}

func (e *Engine) validateTestConfig(tc TestConfig) error {
	if !tc.Scenario.Valid() {
		return fmt.Errorf("%w: unknown scenario %q", ErrInvalidArgument, tc.Scenario)
	}
	if !tc.Processing.Valid() {
		return fmt.Errorf("%w: unknown processing mode %q", ErrInvalidArgument, tc.Processing)
	}
	if _, ok := e.cfg.panel(tc.CassetteType); !ok {
		return fmt.Errorf("%w: unknown cassette type %q", ErrInvalidArgument, tc.CassetteType)
	}
	return nil
}

func (e *Engine) snapshot(ch *channel) ChannelSnapshot {
	timer, live := e.timers.Active(ch.id)
	return ch.snapshot(timer, live)
}
