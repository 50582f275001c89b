package render

import (
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/shopspring/decimal"
)

// DocumentData is the template context shared by all unit documents.
type DocumentData struct {
	Title         string
	DocumentType  domain.DocumentType
	PropertyName  string
	Address       string
	UnitNumber    string
	Floor         string
	Owners        []domain.Owner
	ContractPrice decimal.Decimal
	Payments      []domain.Payment
	TotalPaid     decimal.Decimal
	Balance       decimal.Decimal
	TurnoverDate  *time.Time
	GeneratedAt   time.Time
	GeneratedBy   string
}

var documentTitles = map[domain.DocumentType]string{
	domain.DocumentStatementOfAccount: "Statement of Account",
	domain.DocumentUtilitiesGuide:     "Utilities Guide",
	domain.DocumentHandoverChecklist:  "Handover Checklist",
}

// DocumentTitle returns the human readable name of a document type.
func DocumentTitle(docType domain.DocumentType) string {
	if title, ok := documentTitles[docType]; ok {
		return title
	}
	return docType.String()
}

func NewDocumentData(details *domain.UnitDetails, docType domain.DocumentType, generatedBy string, generatedAt time.Time) DocumentData {
	return DocumentData{
		Title:         DocumentTitle(docType),
		DocumentType:  docType,
		PropertyName:  details.Property.Name,
		Address:       details.Property.Address,
		UnitNumber:    details.Unit.UnitNumber,
		Floor:         details.Unit.Floor,
		Owners:        details.Owners,
		ContractPrice: details.Unit.ContractPrice,
		Payments:      details.Payments,
		TotalPaid:     details.TotalPaid(),
		Balance:       details.Balance(),
		TurnoverDate:  details.Unit.TurnoverDate,
		GeneratedAt:   generatedAt,
		GeneratedBy:   generatedBy,
	}
}
