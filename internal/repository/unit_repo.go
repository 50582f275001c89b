package repository

import (
	"context"
	"errors"

	"github.com/handover/docbatch/internal/domain"
	"gorm.io/gorm"
)

// UnitRepository reads the property records a unit task needs.
type UnitRepository interface {
	GetDetails(ctx context.Context, unitID string) (*domain.UnitDetails, error)
	ListUnitIDsWithRecipients(ctx context.Context, propertyID string) ([]string, error)
}

type GormUnitRepo struct {
	db *gorm.DB
}

func NewGormUnitRepo(db *gorm.DB) *GormUnitRepo {
	return &GormUnitRepo{db: db}
}

func (r *GormUnitRepo) GetDetails(ctx context.Context, unitID string) (*domain.UnitDetails, error) {
	db := r.db.WithContext(ctx)

	var unit UnitModel
	err := db.First(&unit, "id = ?", unitID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var property PropertyModel
	err = db.First(&property, "id = ?", unit.PropertyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var owners []OwnerModel
	err = db.Table("owners").
		Select("owners.*").
		Joins("JOIN unit_owners ON unit_owners.owner_id = owners.id").
		Where("unit_owners.unit_id = ?", unitID).
		Order("owners.name ASC").
		Find(&owners).Error
	if err != nil {
		return nil, err
	}

	var payments []PaymentModel
	err = db.Where("unit_id = ?", unitID).
		Order("paid_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	details := &domain.UnitDetails{
		Unit: domain.Unit{
			ID:            unit.ID,
			PropertyID:    unit.PropertyID,
			UnitNumber:    unit.UnitNumber,
			Floor:         unit.Floor,
			ContractPrice: unit.ContractPrice,
			TurnoverDate:  unit.TurnoverDate,
		},
		Property: domain.Property{
			ID:      property.ID,
			Name:    property.Name,
			Address: property.Address,
		},
		Owners:   make([]domain.Owner, 0, len(owners)),
		Payments: make([]domain.Payment, 0, len(payments)),
	}
	for _, o := range owners {
		details.Owners = append(details.Owners, domain.Owner{ID: o.ID, Name: o.Name, Email: o.Email})
	}
	for _, p := range payments {
		details.Payments = append(details.Payments, domain.Payment{
			ID:        p.ID,
			Reference: p.Reference,
			Amount:    p.Amount,
			PaidAt:    p.PaidAt,
		})
	}
	return details, nil
}

// ListUnitIDsWithRecipients returns the units of a property that have at least one owner
// with an email address on file.
func (r *GormUnitRepo) ListUnitIDsWithRecipients(ctx context.Context, propertyID string) ([]string, error) {
	var unitIDs []string
	err := r.db.WithContext(ctx).
		Table("units").
		Distinct("units.id").
		Joins("JOIN unit_owners ON unit_owners.unit_id = units.id").
		Joins("JOIN owners ON owners.id = unit_owners.owner_id").
		Where("units.property_id = ? AND owners.email IS NOT NULL AND owners.email <> ''", propertyID).
		Order("units.id ASC").
		Pluck("units.id", &unitIDs).Error
	if err != nil {
		return nil, err
	}
	return unitIDs, nil
}
