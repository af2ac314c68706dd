package reader

import (
	"fmt"
	"slices"
)

// Command names an external event the state machine accepts.
type Command string

const (
	CmdInsert           Command = "insert"
	CmdRemove           Command = "remove"
	CmdConfigure        Command = "configure"
	CmdCancelConfig     Command = "cancel_config"
	CmdStartTest        Command = "start_test"
	CmdStartNextTest    Command = "start_next_test"
	CmdDecisionAbort    Command = "decision_abort"
	CmdDecisionContinue Command = "decision_continue"
	CmdStop             Command = "stop"
	CmdStopConfirm      Command = "stop_confirm"
	CmdStopCancel       Command = "stop_cancel"
	CmdViewDetails      Command = "view_details"
	CmdCloseDetail      Command = "close_detail"
	CmdRetry            Command = "retry"
	CmdAbort            Command = "abort"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// GuardContext is everything a guard may look at.
type GuardContext struct {
	ChannelID       int
	State           State
	CassettePresent bool
	Modal           *Modal
}

type modalRule int

const (
	modalAny modalRule = iota
	// the slot must be free
	modalFree
	// the slot must hold a modal of the rule's kind owned by this channel
	modalOwned
)

type transitionRule struct {
	from      []State
	modal     modalRule
	modalKind ModalKind
}

// rules is the single table of legal source states. An empty from list means
// the command is not restricted by state.
var rules = map[Command]transitionRule{
	CmdInsert:           {from: []State{StateEmpty, StateWaitingForSwap, StateIncubationAlert}},
	CmdRemove:           {},
	CmdConfigure:        {from: []State{StateDetected}, modal: modalFree},
	CmdCancelConfig:     {modal: modalOwned, modalKind: ModalConfig},
	CmdStartTest:        {from: []State{StateConfiguring}, modal: modalOwned, modalKind: ModalConfig},
	CmdStartNextTest:    {from: []State{StateReadyForTestN}},
	CmdDecisionAbort:    {from: []State{StateResult}, modal: modalOwned, modalKind: ModalDecision},
	CmdDecisionContinue: {from: []State{StateResult}, modal: modalOwned, modalKind: ModalDecision},
	CmdStop:             {from: []State{StateWaitingForSwap}, modal: modalFree},
	CmdStopConfirm:      {modal: modalOwned, modalKind: ModalStopConfirm},
	CmdStopCancel:       {modal: modalOwned, modalKind: ModalStopConfirm},
	CmdViewDetails:      {from: []State{StateComplete}, modal: modalFree},
	CmdCloseDetail:      {modal: modalOwned, modalKind: ModalDetail},
	CmdRetry:            {from: []State{StateError}},
	CmdAbort:            {from: []State{StateError}},
}

// Guard decides whether cmd may run against the channel described by gc.
// Guards are pure and never change state.
func Guard(cmd Command, gc GuardContext) GuardResult {
	rule, ok := rules[cmd]
	if !ok {
		return GuardResult{Reason: fmt.Sprintf("unknown command %q", cmd)}
	}

	if cmd == CmdRemove && !CanRemoveCassette(gc.State, gc.CassettePresent) {
		if !gc.CassettePresent {
			return GuardResult{Reason: "no cassette to remove"}
		}
		return GuardResult{Reason: fmt.Sprintf("cannot remove a cassette in state %s", gc.State)}
	}

	if len(rule.from) > 0 && !slices.Contains(rule.from, gc.State) {
		return GuardResult{Reason: fmt.Sprintf("%s not allowed in state %s", cmd, gc.State)}
	}

	switch rule.modal {
	case modalFree:
		if gc.Modal != nil {
			return GuardResult{Reason: fmt.Sprintf("%s modal for channel %d is open", gc.Modal.Kind, gc.Modal.ChannelID)}
		}
	case modalOwned:
		if gc.Modal == nil || gc.Modal.Kind != rule.modalKind || gc.Modal.ChannelID != gc.ChannelID {
			return GuardResult{Reason: fmt.Sprintf("no %s modal open for channel %d", rule.modalKind, gc.ChannelID)}
		}
	}

	return GuardResult{Allowed: true}
}
