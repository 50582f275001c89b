package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Property struct {
	ID      string
	Name    string
	Address string
}

type Unit struct {
	ID            string
	PropertyID    string
	UnitNumber    string
	Floor         string
	ContractPrice decimal.Decimal
	TurnoverDate  *time.Time
}

type Owner struct {
	ID    string
	Name  string
	Email string
}

// HasEmail reports whether the owner can receive notifications.
func (o Owner) HasEmail() bool {
	addr := strings.TrimSpace(o.Email)
	if addr == "" {
		return false
	}
	_, err := mail.ParseAddress(addr)
	return err == nil
}

type Payment struct {
	ID        string
	Reference string
	Amount    decimal.Decimal
	PaidAt    time.Time
}

// UnitDetails is the read model a unit task needs.
type UnitDetails struct {
	Unit     Unit
	Property Property
	Owners   []Owner
	Payments []Payment
}

// Recipients returns the owners with a usable email address.
func (d *UnitDetails) Recipients() []Owner {
	if d == nil {
		return nil
	}
	recipients := make([]Owner, 0, len(d.Owners))
	for _, owner := range d.Owners {
		if owner.HasEmail() {
			recipients = append(recipients, owner)
		}
	}
	return recipients
}

func (d *UnitDetails) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	if d == nil {
		return total
	}
	for _, p := range d.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Balance is the contract price less all recorded payments.
func (d *UnitDetails) Balance() decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return d.Unit.ContractPrice.Sub(d.TotalPaid())
}
