package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legalPair is one enumerated transition of the machine.
type legalPair struct {
	docType    DocumentType
	from       Status
	transition Transition
	to         Status
}

// every transition either machine permits. The exhaustive test below derives
// the illegal set as the complement of this list.
var legalPairs = []legalPair{
	{DocQuote, StatusDraft, TransitionSend, StatusSent},
	{DocQuote, StatusSent, TransitionResend, StatusSent},
	{DocQuote, StatusRejected, TransitionResend, StatusSent},
	{DocQuote, StatusExpired, TransitionResend, StatusSent},
	{DocQuote, StatusSent, TransitionAccept, StatusAccepted},
	{DocQuote, StatusSent, TransitionReject, StatusRejected},
	{DocQuote, StatusSent, TransitionExpire, StatusExpired},
	{DocQuote, StatusDraft, TransitionConvert, StatusConverted},
	{DocQuote, StatusSent, TransitionConvert, StatusConverted},
	{DocQuote, StatusAccepted, TransitionConvert, StatusConverted},
	{DocQuote, StatusRejected, TransitionConvert, StatusConverted},

	{DocInvoice, StatusDraft, TransitionSend, StatusSent},
	{DocInvoice, StatusSent, TransitionResend, StatusSent},
	{DocInvoice, StatusPaid, TransitionResend, StatusPaid},
	{DocInvoice, StatusOverdue, TransitionResend, StatusOverdue},
	{DocInvoice, StatusSent, TransitionCancel, StatusCancelled},
	{DocInvoice, StatusSent, TransitionMarkOverdue, StatusOverdue},
	{DocInvoice, StatusSent, TransitionRecordPayment, StatusSent},
	{DocInvoice, StatusOverdue, TransitionRecordPayment, StatusOverdue},
	{DocInvoice, StatusSent, TransitionMarkPaid, StatusPaid},
	{DocInvoice, StatusOverdue, TransitionMarkPaid, StatusPaid},
}

var allStatuses = []Status{
	StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired,
	StatusConverted, StatusPaid, StatusOverdue, StatusCancelled,
}

var allTransitions = []Transition{
	TransitionSend, TransitionResend, TransitionAccept, TransitionReject,
	TransitionExpire, TransitionConvert, TransitionCancel,
	TransitionMarkOverdue, TransitionRecordPayment, TransitionMarkPaid,
}

func TestLegalTransitions(t *testing.T) {
	for _, p := range legalPairs {
		result, err := Attempt(p.docType, p.from, p.transition)
		require.NoErrorf(t, err, "%s %s from %s", p.docType, p.transition, p.from)
		assert.Equalf(t, p.to, result.NewStatus, "%s %s from %s", p.docType, p.transition, p.from)
	}
}

func TestIllegalTransitionsAlwaysError(t *testing.T) {
	legal := make(map[legalPair]bool)
	for _, p := range legalPairs {
		legal[legalPair{p.docType, p.from, p.transition, ""}] = true
	}

	for _, docType := range []DocumentType{DocQuote, DocInvoice} {
		for _, from := range allStatuses {
			for _, transition := range allTransitions {
				if legal[legalPair{docType, from, transition, ""}] {
					continue
				}
				_, err := Attempt(docType, from, transition)
				var invalid *ErrInvalidTransition
				require.ErrorAsf(t, err, &invalid, "%s %s from %s must be rejected", docType, transition, from)
				assert.Equal(t, docType, invalid.Type)
				assert.Equal(t, from, invalid.Current)
				assert.Equal(t, transition, invalid.Attempted)
			}
		}
	}
}

func TestInvalidTransitionReportsAllowedFrom(t *testing.T) {
	// A converted quote cannot be sent; the error names where send is legal
	_, err := Attempt(DocQuote, StatusConverted, TransitionSend)
	var invalid *ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []Status{StatusDraft}, invalid.AllowedFrom)
	assert.Contains(t, invalid.Error(), "cannot send")

	_, err = Attempt(DocInvoice, StatusPaid, TransitionRecordPayment)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []Status{StatusSent, StatusOverdue}, invalid.AllowedFrom)
}

func TestTransitionUnknownToDocumentType(t *testing.T) {
	// Quote-only transitions never apply to invoices and vice versa
	_, err := Attempt(DocInvoice, StatusSent, TransitionAccept)
	var invalid *ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, invalid.AllowedFrom)

	_, err = Attempt(DocQuote, StatusSent, TransitionMarkPaid)
	require.ErrorAs(t, err, &invalid)
}

func TestResendSideEffects(t *testing.T) {
	// Quote resend reissues the approval token and refreshes validity
	result, err := Attempt(DocQuote, StatusExpired, TransitionResend)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, result.NewStatus)
	assert.Contains(t, result.SideEffects, EffectIssueApprovalToken)
	assert.Contains(t, result.SideEffects, EffectRefreshValidity)
	assert.Contains(t, result.SideEffects, EffectDeliverEmail)

	// Invoice resend is delivery only
	result, err = Attempt(DocInvoice, StatusOverdue, TransitionResend)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, result.NewStatus)
	assert.Equal(t, []SideEffect{EffectDeliverEmail}, result.SideEffects)
}

func TestSendSideEffects(t *testing.T) {
	result, err := Attempt(DocQuote, StatusDraft, TransitionSend)
	require.NoError(t, err)
	assert.Equal(t, []SideEffect{EffectIssueApprovalToken, EffectDeliverEmail}, result.SideEffects)

	// Invoices carry no approval token
	result, err = Attempt(DocInvoice, StatusDraft, TransitionSend)
	require.NoError(t, err)
	assert.Equal(t, []SideEffect{EffectDeliverEmail}, result.SideEffects)
}

func TestPaymentSideEffects(t *testing.T) {
	result, err := Attempt(DocInvoice, StatusSent, TransitionRecordPayment)
	require.NoError(t, err)
	assert.Equal(t, []SideEffect{EffectApplyPayment}, result.SideEffects)

	result, err = Attempt(DocInvoice, StatusOverdue, TransitionMarkPaid)
	require.NoError(t, err)
	assert.Equal(t, []SideEffect{EffectStampPaidDate}, result.SideEffects)
}

func TestCanEdit(t *testing.T) {
	// Quotes stay editable through negotiation
	assert.True(t, CanEdit(DocQuote, StatusDraft))
	assert.True(t, CanEdit(DocQuote, StatusSent))
	assert.True(t, CanEdit(DocQuote, StatusRejected))
	assert.False(t, CanEdit(DocQuote, StatusAccepted))
	assert.False(t, CanEdit(DocQuote, StatusExpired))
	assert.False(t, CanEdit(DocQuote, StatusConverted))

	// Invoices lock the moment they leave draft
	assert.True(t, CanEdit(DocInvoice, StatusDraft))
	assert.False(t, CanEdit(DocInvoice, StatusSent))
	assert.False(t, CanEdit(DocInvoice, StatusPaid))
	assert.False(t, CanEdit(DocInvoice, StatusOverdue))
	assert.False(t, CanEdit(DocInvoice, StatusCancelled))
}

func TestAllowedTransitions(t *testing.T) {
	assert.ElementsMatch(t,
		[]Transition{TransitionResend, TransitionAccept, TransitionReject, TransitionExpire, TransitionConvert},
		AllowedTransitions(DocQuote, StatusSent))

	assert.ElementsMatch(t,
		[]Transition{TransitionResend, TransitionMarkOverdue, TransitionCancel, TransitionRecordPayment, TransitionMarkPaid},
		AllowedTransitions(DocInvoice, StatusSent))

	// Terminal statuses offer nothing (a paid invoice can still be re-delivered)
	assert.Empty(t, AllowedTransitions(DocQuote, StatusConverted))
	assert.Empty(t, AllowedTransitions(DocInvoice, StatusCancelled))
	assert.Equal(t, []Transition{TransitionResend}, AllowedTransitions(DocInvoice, StatusPaid))
}

func TestAllowedTransitionsMatchesAttempt(t *testing.T) {
	for _, docType := range []DocumentType{DocQuote, DocInvoice} {
		for _, status := range allStatuses {
			allowed := make(map[Transition]bool)
			for _, tr := range AllowedTransitions(docType, status) {
				allowed[tr] = true
			}
			for _, tr := range allTransitions {
				_, err := Attempt(docType, status, tr)
				assert.Equalf(t, allowed[tr], err == nil,
					"%s %s from %s: AllowedTransitions and Attempt disagree", docType, tr, status)
			}
		}
	}
}
