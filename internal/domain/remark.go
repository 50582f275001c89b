package domain

import "time"

// RemarkCategory tags a timeline remark.
type RemarkCategory string

const (
	RemarkCategoryDocument RemarkCategory = "DOCUMENT"
	RemarkCategoryEmail    RemarkCategory = "EMAIL"
)

func (c RemarkCategory) String() string { return string(c) }

// TimelineRemark is an append-only audit entry on a unit.
type TimelineRemark struct {
	ID         string
	UnitID     string
	OccurredAt time.Time
	Event      string
	Category   RemarkCategory
	AdminID    string
}
