// model.go this code defines the data model for the application
package datastore

import (
	"time"

	"github.com/shopspring/decimal"
)

// GraderLevel is the resolved grading level of a user. It is computed once
// at the persistence boundary and passed into the workflow as an input.
type GraderLevel string

const (
	GraderLevelJunior GraderLevel = "junior"
	GraderLevelSenior GraderLevel = "senior"
)

// JobStatus tracks a grading job through its lifecycle. Transitions are
// strictly forward; the only exception is the explicit reopen performed by
// grader assignment.
type JobStatus string

const (
	JobReadyToGrade         JobStatus = "READY_TO_GRADE"
	JobGrading              JobStatus = "GRADING"
	JobReadyForSeniorReview JobStatus = "READY_FOR_SENIOR_REVIEW"
	JobGraded               JobStatus = "GRADED"
)

// rank orders job statuses for the forward-only check.
func (s JobStatus) rank() int {
	switch s {
	case JobReadyToGrade:
		return 0
	case JobGrading:
		return 1
	case JobReadyForSeniorReview:
		return 2
	case JobGraded:
		return 3
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving to next respects the forward-only rule.
func (s JobStatus) CanAdvanceTo(next JobStatus) bool {
	return next.rank() > s.rank()
}

// SuborderStatus mirrors the job lifecycle at the suborder level.
type SuborderStatus string

const (
	SuborderVerified SuborderStatus = "VERIFIED"
	SuborderGrading  SuborderStatus = "GRADING"
	SuborderGraded   SuborderStatus = "GRADED"
)

// OrderStatus mirrors the job lifecycle at the order level.
type OrderStatus string

const (
	OrderVerified OrderStatus = "VERIFIED"
	OrderGrading  OrderStatus = "GRADING"
	OrderGraded   OrderStatus = "GRADED"
)

// Grader is a grading user with a resolved level.
type Grader struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"uniqueIndex;size:100"`
	Email   string `gorm:"size:255"`
	Level   GraderLevel
	Active  bool
	Deleted bool
}

// Order is the top of the fulfillment hierarchy.
type Order struct {
	ID            uint   `gorm:"primaryKey"`
	OrderNo       string `gorm:"uniqueIndex;size:50"`
	CustomerEmail string `gorm:"size:255"`
	CustomerName  string `gorm:"size:255"`
	Status        OrderStatus
}

// Suborder groups jobs under an order. Traversal is by id lookup, there are
// no embedded back-pointers.
type Suborder struct {
	ID             uint   `gorm:"primaryKey"`
	SuborderNo     string `gorm:"uniqueIndex;size:50"`
	OrderID        uint   `gorm:"index"`
	ServiceLevelID uint
	CRMDealID      string `gorm:"size:100"`
	ShipCountry    string `gorm:"size:100"`
	DueDate        time.Time
	Status         SuborderStatus
	IsGraded       bool
	GradedOn       *time.Time
}

// Job is a batch of cards assigned to one grader at a time.
type Job struct {
	ID             uint   `gorm:"primaryKey"`
	JobNo          string `gorm:"uniqueIndex;size:50"`
	SuborderID     uint   `gorm:"index"`
	ItemCount      int
	Status         JobStatus
	GraderID       *uint `gorm:"index"`
	GradedBy       string
	GradedOn       *time.Time
	IsGraded       bool
	QCApplicable   bool
	QCApplicableOn *time.Time
	QCApplicableBy string
	Version        int // optimistic lock
}

// Item is one physical card within a job.
type Item struct {
	ID            uint   `gorm:"primaryKey"`
	JobID         uint   `gorm:"index"`
	Name          string `gorm:"size:255"`
	Category      string `gorm:"size:100"`
	CardNumber    string `gorm:"size:50"`
	SetName       string `gorm:"size:255"`
	PlayerNames   string `gorm:"size:255"` // comma separated
	ItemMasterID  string `gorm:"index;size:50"`
	DeclaredValue int64
	CurrentGrade  *float64
}

// GradeRecord is the dual-phase condition record for an item. Junior and
// senior field groups have identical shape and are never cross-written.
// The record is created lazily on the first grade write and reused from
// then on, never replaced.
type GradeRecord struct {
	ID     uint `gorm:"primaryKey"`
	ItemID uint `gorm:"uniqueIndex"`

	JrCentering    *float64
	JrCorners      *float64
	JrEdges        *float64
	JrSurface      *float64
	JrAuto         *float64
	JrMinGrade     *float64
	JrFinalGrade   *float64
	JrIsBlackLabel bool
	JrGrader       string `gorm:"size:100"`
	JrGradedOn     *time.Time
	JrNotes        string
	JrComment      string
	JrFrontImgTags string
	JrBackImgTags  string

	SrCentering    *float64
	SrCorners      *float64
	SrEdges        *float64
	SrSurface      *float64
	SrAuto         *float64
	SrMinGrade     *float64
	SrFinalGrade   *float64
	SrIsBlackLabel bool
	SrGrader       string `gorm:"size:100"`
	SrGradedOn     *time.Time
	SrNotes        string
	SrComment      string
	SrFrontImgTags string
	SrBackImgTags  string

	IsDeactivated          bool
	IsCantGrade            bool
	IsSvcUnavailable       bool
	SvcUnavailableComments string
	IsSecondReview         bool
	IsGraded               bool
	GradeTypeName          string `gorm:"size:100"`

	Version int // optimistic lock
}

// JuniorWritten reports whether any junior-phase grade field has been set.
func (g *GradeRecord) JuniorWritten() bool {
	return g.JrCentering != nil || g.JrCorners != nil || g.JrEdges != nil ||
		g.JrSurface != nil || g.JrAuto != nil || g.JrFinalGrade != nil
}

// SeniorWritten reports whether any senior-phase grade field has been set.
func (g *GradeRecord) SeniorWritten() bool {
	return g.SrCentering != nil || g.SrCorners != nil || g.SrEdges != nil ||
		g.SrSurface != nil || g.SrAuto != nil || g.SrFinalGrade != nil
}

// ServiceLevel is the tier governing whether sub-grades are required.
type ServiceLevel struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"uniqueIndex;size:100"`
	SubGradeRequired bool
}

// FormulaRow maps a formula category and a closed diff-value range to a
// weight quadruple. Read-only reference data.
type FormulaRow struct {
	ID        uint   `gorm:"primaryKey"`
	Category  string `gorm:"index;size:50"`
	RangeLow  float64
	RangeHigh float64
	W1        float64
	W2        float64
	W3        float64
	W4        float64
}

// RoundingRow maps a closed formula-sum range to a round number.
type RoundingRow struct {
	ID        uint `gorm:"primaryKey"`
	RangeLow  float64
	RangeHigh float64
	Round     float64
}

// TakeoffRow is one bump threshold. The bump count is the number of
// thresholds at or below the bump value.
type TakeoffRow struct {
	ID        uint `gorm:"primaryKey"`
	Threshold float64
}

// GradeMaster maps a numeric grade to its grade-type label.
type GradeMaster struct {
	ID         uint `gorm:"primaryKey"`
	GradeValue float64
	GradeName  string `gorm:"size:100"`
}

// GradeDescription maps a grade to its human-readable description.
type GradeDescription struct {
	ID          uint `gorm:"primaryKey"`
	Grade       float64
	Description string `gorm:"size:255"`
}

// CertificationRecord is the external-system audit record of a finalized
// grade. Numeric values are zero-filled when the grade was never assigned
// (cannot-grade and service-unavailable paths). Active stays false until
// the graded order is received back.
type CertificationRecord struct {
	ID            uint   `gorm:"primaryKey"`
	CertID        string `gorm:"uniqueIndex;size:40"`
	ItemID        uint   `gorm:"index"`
	MasterItemID  string `gorm:"size:50"`
	ServiceTypeID int
	Centering     decimal.Decimal `gorm:"type:decimal(4,2)"`
	Corners       decimal.Decimal `gorm:"type:decimal(4,2)"`
	Edges         decimal.Decimal `gorm:"type:decimal(4,2)"`
	Surface       decimal.Decimal `gorm:"type:decimal(4,2)"`
	Auto          decimal.Decimal `gorm:"type:decimal(4,2)"`
	FinalGrade    decimal.Decimal `gorm:"type:decimal(4,2)"`
	Category      string          `gorm:"size:100"`
	Active        bool
	Notes         string
	GradedOn      time.Time
}

// LabelWarehouse holds the generated print-label lines for an item master.
// Upserts are keyed by the item master id.
type LabelWarehouse struct {
	ID           uint   `gorm:"primaryKey"`
	ItemMasterID string `gorm:"uniqueIndex;size:50"`
	Line1        string `gorm:"size:64"`
	Line2        string `gorm:"size:64"`
	Line3        string `gorm:"size:64"`
	Line4        string `gorm:"size:64"`
	UpdatedAt    time.Time
}
