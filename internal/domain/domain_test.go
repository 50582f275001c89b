package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseIntentFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Intent
		wantErr bool
	}{
		{name: "valid uppercase", input: "GENERATE_SOA", want: IntentGenerateSOA},
		{name: "valid lowercase with spaces", input: " send_handover_email ", want: IntentSendHandoverEmail},
		{name: "invalid", input: "print", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseIntentFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseIntentFromString() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIntentFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseIntentFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIntentDocuments(t *testing.T) {
	t.Parallel()

	doc, ok := IntentSendSOAEmail.GeneratedDocument()
	if !ok || doc != DocumentStatementOfAccount {
		t.Fatalf("SEND_SOA_EMAIL generates %s (ok=%v), want STATEMENT_OF_ACCOUNT", doc, ok)
	}
	if _, ok := IntentSendHandoverEmail.GeneratedDocument(); ok {
		t.Fatal("SEND_HANDOVER_EMAIL should not generate a document")
	}
	if !IntentSendHandoverEmail.Notifies() || IntentGenerateSOA.Notifies() {
		t.Fatal("Notifies() mismatch")
	}
	if got := len(IntentSendHandoverEmail.AttachedDocuments()); got != 3 {
		t.Fatalf("handover attachments = %d, want 3", got)
	}
}

func TestArtifactPath(t *testing.T) {
	t.Parallel()

	got := ArtifactPath(DocumentStatementOfAccount, "Sunrise Towers", "12/A", ArtifactFileName(DocumentStatementOfAccount, "12/A"))
	want := "statement-of-account/Sunrise_Towers/12-A/statement-of-account-12-A.pdf"
	if got != want {
		t.Fatalf("ArtifactPath() = %q, want %q", got, want)
	}

	if got := ArtifactPath(DocumentUtilitiesGuide, "../etc", "", "x.pdf"); got != "utilities-guide/--etc/_/x.pdf" {
		t.Fatalf("ArtifactPath() = %q, traversal segments must be neutralised", got)
	}
}

func TestBatchValidate(t *testing.T) {
	t.Parallel()

	base := Batch{Intent: IntentGenerateSOA, Initiator: "admin-1", TotalCount: 2}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	empty := base
	empty.TotalCount = 0
	if err := empty.Validate(); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("Validate() error = %v, want ErrEmptyBatch", err)
	}
	if !errors.Is(ErrEmptyBatch, ErrValidation) {
		t.Fatal("ErrEmptyBatch should wrap ErrValidation")
	}

	over := base
	over.SucceededCount = 2
	over.FailedCount = 1
	if err := over.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestIsNonTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "no recipients", err: NewNoRecipients("u1"), want: true},
		{name: "wrapped missing source", err: fmt.Errorf("load: %w", NewMissingSource("soa")), want: true},
		{name: "render failure", err: NewRenderFailure("boom", errors.New("chrome")), want: false},
		{name: "storage failure", err: NewStorageFailure("put", errors.New("s3")), want: false},
		{name: "unit busy", err: ErrUnitBusy, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "canceled", err: context.Canceled, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsNonTransient(tt.err); got != tt.want {
				t.Fatalf("IsNonTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailureReason(t *testing.T) {
	t.Parallel()

	if got := FailureReason(NewNoRecipients("u3")); got != "NON_TRANSIENT_NO_RECIPIENTS" {
		t.Fatalf("FailureReason() = %q", got)
	}
	if got := FailureReason(fmt.Errorf("attempt: %w", context.DeadlineExceeded)); got != "ATTEMPT_TIMEOUT" {
		t.Fatalf("FailureReason() = %q", got)
	}
	if got := FailureReason(fmt.Errorf("%w: broker down", ErrEnqueueFailed)); got != "ENQUEUE_FAILURE" {
		t.Fatalf("FailureReason() = %q", got)
	}
	if got := FailureReason(errors.New("x")); got != "UNKNOWN" {
		t.Fatalf("FailureReason() = %q", got)
	}
}

func TestUnitDetailsRecipientsAndBalance(t *testing.T) {
	t.Parallel()

	details := &UnitDetails{
		Unit: Unit{ContractPrice: decimal.RequireFromString("1000000.00")},
		Owners: []Owner{
			{ID: "o1", Name: "Ana", Email: "ana@example.com"},
			{ID: "o2", Name: "Ben", Email: ""},
			{ID: "o3", Name: "Cy", Email: "not-an-email"},
		},
		Payments: []Payment{
			{Amount: decimal.RequireFromString("250000.50")},
			{Amount: decimal.RequireFromString("100000")},
		},
	}

	recipients := details.Recipients()
	if len(recipients) != 1 || recipients[0].ID != "o1" {
		t.Fatalf("Recipients() = %+v, want only o1", recipients)
	}
	if got := details.Balance().StringFixed(2); got != "649999.50" {
		t.Fatalf("Balance() = %s, want 649999.50", got)
	}
}
