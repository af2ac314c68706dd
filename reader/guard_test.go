package reader

import (
	"slices"
	"testing"

	"go.viam.com/test"
)

func TestInsertRemovePredicates(t *testing.T) {
	insertable := []State{StateEmpty, StateWaitingForSwap, StateIncubationAlert}
	for _, s := range AllStates {
		test.That(t, CanInsertCassette(s), test.ShouldEqual, slices.Contains(insertable, s))
		test.That(t, CanRemoveCassette(s, false), test.ShouldBeFalse)
		test.That(t, CanRemoveCassette(s, true), test.ShouldEqual, s != StateEmpty)
	}
}

func TestGuard(t *testing.T) {
	configOn1 := &Modal{Kind: ModalConfig, ChannelID: 1}
	decisionOn1 := &Modal{Kind: ModalDecision, ChannelID: 1, Variant: VariantConfirm}
	decisionOn2 := &Modal{Kind: ModalDecision, ChannelID: 2, Variant: VariantConfirm}

	tests := []struct {
		name    string
		cmd     Command
		gc      GuardContext
		allowed bool
	}{
		{"configure detected", CmdConfigure, GuardContext{ChannelID: 1, State: StateDetected, CassettePresent: true}, true},
		{"configure while modal open", CmdConfigure, GuardContext{ChannelID: 1, State: StateDetected, Modal: decisionOn2}, false},
		{"configure empty", CmdConfigure, GuardContext{ChannelID: 1, State: StateEmpty}, false},
		{"start test with own config modal", CmdStartTest, GuardContext{ChannelID: 1, State: StateConfiguring, Modal: configOn1}, true},
		{"start test without modal", CmdStartTest, GuardContext{ChannelID: 1, State: StateConfiguring}, false},
		{"decision on own modal", CmdDecisionContinue, GuardContext{ChannelID: 1, State: StateResult, Modal: decisionOn1}, true},
		{"decision on other channel's modal", CmdDecisionContinue, GuardContext{ChannelID: 1, State: StateResult, Modal: decisionOn2}, false},
		{"decision queued but not shown", CmdDecisionAbort, GuardContext{ChannelID: 1, State: StateResult}, false},
		{"stop waiting for swap", CmdStop, GuardContext{ChannelID: 1, State: StateWaitingForSwap}, true},
		{"stop while modal open", CmdStop, GuardContext{ChannelID: 1, State: StateWaitingForSwap, Modal: decisionOn2}, false},
		{"retry error", CmdRetry, GuardContext{ChannelID: 1, State: StateError}, true},
		{"retry mismatch", CmdRetry, GuardContext{ChannelID: 1, State: StateErrorTypeMismatch}, false},
		{"abort error", CmdAbort, GuardContext{ChannelID: 1, State: StateError}, true},
		{"remove present", CmdRemove, GuardContext{ChannelID: 1, State: StateReading, CassettePresent: true}, true},
		{"remove absent", CmdRemove, GuardContext{ChannelID: 1, State: StateIncubationAlert}, false},
		{"insert during alert", CmdInsert, GuardContext{ChannelID: 1, State: StateIncubationAlert}, true},
		{"insert while reading", CmdInsert, GuardContext{ChannelID: 1, State: StateReading, CassettePresent: true}, false},
		{"start next ready", CmdStartNextTest, GuardContext{ChannelID: 1, State: StateReadyForTestN, Modal: decisionOn2}, true},
		{"view details complete", CmdViewDetails, GuardContext{ChannelID: 1, State: StateComplete}, true},
		{"close detail without modal", CmdCloseDetail, GuardContext{ChannelID: 1, State: StateComplete}, false},
		{"unknown command", Command("dance"), GuardContext{ChannelID: 1, State: StateEmpty}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Guard(tt.cmd, tt.gc)
			test.That(t, res.Allowed, test.ShouldEqual, tt.allowed)
			if !tt.allowed {
				test.That(t, res.Reason, test.ShouldNotBeEmpty)
			}
		})
	}
}
