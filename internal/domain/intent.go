package domain

import (
	"fmt"
	"strings"
)

// DocumentType identifies the kind of artifact generated for a unit.
type DocumentType string

const (
	DocumentStatementOfAccount DocumentType = "STATEMENT_OF_ACCOUNT"
	DocumentUtilitiesGuide     DocumentType = "UTILITIES_GUIDE"
	DocumentHandoverChecklist  DocumentType = "HANDOVER_CHECKLIST"
)

func (d DocumentType) String() string { return string(d) }

func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentStatementOfAccount, DocumentUtilitiesGuide, DocumentHandoverChecklist:
		return true
	}
	return false
}

// Slug is the lowercase path segment used for storage and templates.
func (d DocumentType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(d.String()), "_", "-")
}

func ParseDocumentTypeFromString(s string) (DocumentType, error) {
	dt := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if !dt.IsValid() {
		return "", fmt.Errorf("%w: invalid document type %q", ErrValidation, s)
	}
	return dt, nil
}

// Intent is the bulk operation a batch performs on each of its units.
type Intent string

const (
	IntentGenerateSOA               Intent = "GENERATE_SOA"
	IntentGenerateUtilitiesGuide    Intent = "GENERATE_UTILITIES_GUIDE"
	IntentGenerateHandoverChecklist Intent = "GENERATE_HANDOVER_CHECKLIST"
	IntentSendSOAEmail              Intent = "SEND_SOA_EMAIL"
	IntentSendHandoverEmail         Intent = "SEND_HANDOVER_EMAIL"
)

var allIntents = []Intent{
	IntentGenerateSOA,
	IntentGenerateUtilitiesGuide,
	IntentGenerateHandoverChecklist,
	IntentSendSOAEmail,
	IntentSendHandoverEmail,
}

func (i Intent) String() string { return string(i) }

func (i Intent) IsValid() bool {
	for _, known := range allIntents {
		if i == known {
			return true
		}
	}
	return false
}

// Intents returns every supported intent.
func Intents() []Intent {
	out := make([]Intent, len(allIntents))
	copy(out, allIntents)
	return out
}

func ParseIntentFromString(s string) (Intent, error) {
	in := Intent(strings.ToUpper(strings.TrimSpace(s)))
	if !in.IsValid() {
		return "", fmt.Errorf("%w: invalid intent %q", ErrValidation, s)
	}
	return in, nil
}

// GeneratedDocument returns the document type the intent (re)generates, if any.
func (i Intent) GeneratedDocument() (DocumentType, bool) {
	switch i {
	case IntentGenerateSOA, IntentSendSOAEmail:
		return DocumentStatementOfAccount, true
	case IntentGenerateUtilitiesGuide:
		return DocumentUtilitiesGuide, true
	case IntentGenerateHandoverChecklist:
		return DocumentHandoverChecklist, true
	}
	return "", false
}

// Notifies reports whether the intent emails the unit owners.
func (i Intent) Notifies() bool {
	return i == IntentSendSOAEmail || i == IntentSendHandoverEmail
}

// AttachedDocuments lists the artifact types attached when the intent notifies.
func (i Intent) AttachedDocuments() []DocumentType {
	switch i {
	case IntentSendSOAEmail:
		return []DocumentType{DocumentStatementOfAccount}
	case IntentSendHandoverEmail:
		return []DocumentType{DocumentStatementOfAccount, DocumentUtilitiesGuide, DocumentHandoverChecklist}
	}
	return nil
}
