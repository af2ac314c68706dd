package reader

import "github.com/samber/lo"

// ModalKind names the dialogs that compete for the single modal slot.
type ModalKind string

const (
	ModalConfig      ModalKind = "config"
	ModalDecision    ModalKind = "decision"
	ModalStopConfirm ModalKind = "stop_confirm"
	ModalDetail      ModalKind = "detail"
)

// DecisionVariant tags a decision modal.
type DecisionVariant string

const (
	// VariantConfirm follows a positive first test.
	VariantConfirm DecisionVariant = "a"
	// VariantTiebreak follows a negative second test that conflicts with the first.
	VariantTiebreak DecisionVariant = "b"
)

// Modal is one request for the modal slot.
type Modal struct {
	Kind      ModalKind
	ChannelID int
	Variant   DecisionVariant
}

// ModalArbiter grants the reader's single modal slot. User-opened modals are
// refused while the slot is taken; system-raised ones wait in FIFO order.
type ModalArbiter struct {
	active *Modal
	queue  []Modal
}

// NewModalArbiter returns an arbiter with an empty slot and queue.
func NewModalArbiter() *ModalArbiter {
	return &ModalArbiter{}
}

// Active returns the modal currently shown.
func (a *ModalArbiter) Active() (Modal, bool) {
	if a.active == nil {
		return Modal{}, false
	}
	return *a.active, true
}

// Busy reports whether a modal is shown.
func (a *ModalArbiter) Busy() bool { return a.active != nil }

// Owns reports whether the shown modal is of kind k and belongs to the channel.
func (a *ModalArbiter) Owns(channelID int, k ModalKind) bool {
	return a.active != nil && a.active.ChannelID == channelID && a.active.Kind == k
}

// Open shows m if the slot is free.
func (a *ModalArbiter) Open(m Modal) bool {
	if a.Busy() {
		return false
	}
	a.active = &m
	return true
}

// Request shows m if the slot is free and queues it otherwise. It reports
// whether m was shown immediately.
func (a *ModalArbiter) Request(m Modal) bool {
	if a.Open(m) {
		return true
	}
	a.queue = append(a.queue, m)
	return false
}

// Close empties the slot. Closing an empty slot is a no-op.
func (a *ModalArbiter) Close() bool {
	if !a.Busy() {
		return false
	}
	a.active = nil
	return true
}

// Prune drops every queued request for the channel and returns how many
// were dropped.
func (a *ModalArbiter) Prune(channelID int) int {
	before := len(a.queue)
	a.queue = lo.Filter(a.queue, func(m Modal, _ int) bool { return m.ChannelID != channelID })
	return before - len(a.queue)
}

// Drain shows the oldest queued request that is still valid, discarding
// stale ones on the way. It stops at the first valid request, when the queue
// empties, or immediately when the slot is taken.
func (a *ModalArbiter) Drain(valid func(Modal) bool) (Modal, bool) {
	if a.Busy() {
		return Modal{}, false
	}
	for n := len(a.queue); n > 0 && len(a.queue) > 0; n-- {
		next := a.queue[0]
		a.queue = a.queue[1:]
		if valid(next) {
			a.active = &next
			return next, true
		}
	}
	return Modal{}, false
}

// Queued returns a copy of the pending requests, oldest first.
func (a *ModalArbiter) Queued() []Modal {
	return append([]Modal(nil), a.queue...)
}
