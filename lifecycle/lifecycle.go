// Package lifecycle is the state machine for quote and invoice statuses.
// It knows which transitions are legal from which status and what
// collaborator work each one triggers; it performs no I/O itself.
package lifecycle

import "fmt"

// DocumentType discriminates the two machine instantiations.
type DocumentType string

const (
	DocQuote   DocumentType = "quote"
	DocInvoice DocumentType = "invoice"
)

// Status of a document. Quote and invoice share the enum but each type only
// ever holds the statuses its transition table can reach.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Transition names the operations a caller can attempt.
type Transition string

const (
	TransitionSend          Transition = "send"
	TransitionResend        Transition = "resend"
	TransitionAccept        Transition = "accept"
	TransitionReject        Transition = "reject"
	TransitionExpire        Transition = "expire"
	TransitionConvert       Transition = "convert"
	TransitionCancel        Transition = "cancel"
	TransitionMarkOverdue   Transition = "markOverdue"
	TransitionRecordPayment Transition = "recordPayment"
	TransitionMarkPaid      Transition = "markPaid"
)

// SideEffect names collaborator work the caller must perform after a
// successful transition. The machine only reports them.
type SideEffect string

const (
	EffectIssueApprovalToken SideEffect = "issueApprovalToken"
	EffectDeliverEmail       SideEffect = "deliverEmail"
	EffectRefreshValidity    SideEffect = "refreshValidity"
	EffectCreateInvoice      SideEffect = "createInvoice"
	EffectApplyPayment       SideEffect = "applyPayment"
	EffectStampPaidDate      SideEffect = "stampPaidDate"
)

// Result of a legal transition.
type Result struct {
	NewStatus   Status
	SideEffects []SideEffect
}

// ErrInvalidTransition reports an attempt from a status that does not permit
// it, with the set of statuses that would.
type ErrInvalidTransition struct {
	Type        DocumentType
	Current     Status
	Attempted   Transition
	AllowedFrom []Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("%s cannot %s from status %q (allowed from %v)",
		e.Type, e.Attempted, e.Current, e.AllowedFrom)
}

// rule maps each permitted from-status to its target status. Ordered slices
// keep AllowedFrom reporting deterministic.
type rule struct {
	from    []Status
	to      map[Status]Status
	effects []SideEffect
}

var transitions = map[DocumentType]map[Transition]rule{
	DocQuote: {
		TransitionSend: {
			from:    []Status{StatusDraft},
			to:      map[Status]Status{StatusDraft: StatusSent},
			effects: []SideEffect{EffectIssueApprovalToken, EffectDeliverEmail},
		},
		// Resend re-delivers and reissues the approval token; an expired
		// quote gets a fresh validity window on its way back to sent.
		TransitionResend: {
			from: []Status{StatusSent, StatusRejected, StatusExpired},
			to: map[Status]Status{
				StatusSent:     StatusSent,
				StatusRejected: StatusSent,
				StatusExpired:  StatusSent,
			},
			effects: []SideEffect{EffectIssueApprovalToken, EffectRefreshValidity, EffectDeliverEmail},
		},
		TransitionAccept: {
			from: []Status{StatusSent},
			to:   map[Status]Status{StatusSent: StatusAccepted},
		},
		TransitionReject: {
			from: []Status{StatusSent},
			to:   map[Status]Status{StatusSent: StatusRejected},
		},
		TransitionExpire: {
			from: []Status{StatusSent},
			to:   map[Status]Status{StatusSent: StatusExpired},
		},
		// Conversion is lenient: any negotiable state plus accepted can be
		// copied into a draft invoice.
		TransitionConvert: {
			from: []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected},
			to: map[Status]Status{
				StatusDraft:    StatusConverted,
				StatusSent:     StatusConverted,
				StatusAccepted: StatusConverted,
				StatusRejected: StatusConverted,
			},
			effects: []SideEffect{EffectCreateInvoice},
		},
	},
	DocInvoice: {
		TransitionSend: {
			from:    []Status{StatusDraft},
			to:      map[Status]Status{StatusDraft: StatusSent},
			effects: []SideEffect{EffectDeliverEmail},
		},
		// Invoice resend is delivery only, never a status change.
		TransitionResend: {
			from: []Status{StatusSent, StatusPaid, StatusOverdue},
			to: map[Status]Status{
				StatusSent:    StatusSent,
				StatusPaid:    StatusPaid,
				StatusOverdue: StatusOverdue,
			},
			effects: []SideEffect{EffectDeliverEmail},
		},
		TransitionCancel: {
			from: []Status{StatusSent},
			to:   map[Status]Status{StatusSent: StatusCancelled},
		},
		TransitionMarkOverdue: {
			from: []Status{StatusSent},
			to:   map[Status]Status{StatusSent: StatusOverdue},
		},
		// A partial payment leaves the status in place; the caller follows
		// up with markPaid once the balance reaches zero.
		TransitionRecordPayment: {
			from: []Status{StatusSent, StatusOverdue},
			to: map[Status]Status{
				StatusSent:    StatusSent,
				StatusOverdue: StatusOverdue,
			},
			effects: []SideEffect{EffectApplyPayment},
		},
		TransitionMarkPaid: {
			from: []Status{StatusSent, StatusOverdue},
			to: map[Status]Status{
				StatusSent:    StatusPaid,
				StatusOverdue: StatusPaid,
			},
			effects: []SideEffect{EffectStampPaidDate},
		},
	},
}

// editable statuses per document type. Quotes stay negotiable after sending;
// invoices lock their items the moment they go out.
var editable = map[DocumentType][]Status{
	DocQuote:   {StatusDraft, StatusSent, StatusRejected},
	DocInvoice: {StatusDraft},
}

// CanEdit reports whether items and contractor assignments of a document in
// the given status may still be added, edited or removed.
func CanEdit(docType DocumentType, status Status) bool {
	for _, s := range editable[docType] {
		if s == status {
			return true
		}
	}
	return false
}

// Attempt validates a transition from the current status and returns the
// resulting status plus the side effects the caller must run. Illegal pairs
// always come back as *ErrInvalidTransition, never as a silent no-op.
func Attempt(docType DocumentType, current Status, transition Transition) (Result, error) {
	r, ok := transitions[docType][transition]
	if !ok {
		return Result{}, &ErrInvalidTransition{
			Type:      docType,
			Current:   current,
			Attempted: transition,
		}
	}
	next, ok := r.to[current]
	if !ok {
		return Result{}, &ErrInvalidTransition{
			Type:        docType,
			Current:     current,
			Attempted:   transition,
			AllowedFrom: r.from,
		}
	}
	return Result{NewStatus: next, SideEffects: r.effects}, nil
}

// AllowedTransitions lists what a document in the given status can do, for
// callers that render action menus.
func AllowedTransitions(docType DocumentType, status Status) []Transition {
	var out []Transition
	for _, t := range []Transition{
		TransitionSend, TransitionResend, TransitionAccept, TransitionReject,
		TransitionExpire, TransitionConvert, TransitionCancel,
		TransitionMarkOverdue, TransitionRecordPayment, TransitionMarkPaid,
	} {
		r, ok := transitions[docType][t]
		if !ok {
			continue
		}
		if _, ok := r.to[status]; ok {
			out = append(out, t)
		}
	}
	return out
}
