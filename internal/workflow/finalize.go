package workflow

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/dispatch"
	"github.com/gradehaus/gradeflow/internal/errors"
)

// FinalizeGrades records the senior phase for a batch of items belonging to
// one job and moves the job to GRADED. Junior callers are rejected. Every
// processed item produces a certification record, including the
// cannot-grade and service-unavailable short circuits. QC applicability is
// sticky-ORed onto the job. Post-commit, the graded-status cascade, label
// regeneration and the optional QC alert run through the dispatcher.
func (e *Engine) FinalizeGrades(ctx context.Context, grader Grader, inputs []ItemGradeInput) error {
	if grader.Level != datastore.GraderLevelSenior {
		return errors.Newf("second level grading can't come from a junior grader").
			Component("workflow").
			Category(errors.CategoryAuthorization).
			Context("grader", grader.Name).
			Build()
	}

	ids := make([]uint, 0, len(inputs))
	for i := range inputs {
		ids = append(ids, inputs[i].ItemID)
	}
	items, err := e.store.GetItemsByIDs(ids)
	if err != nil {
		return err
	}
	byID := make(map[uint]*datastore.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	records, err := e.store.GetGradeRecords(ids)
	if err != nil {
		return err
	}

	now := time.Now()
	bc := &batchContext{}
	var batch []*datastore.GradeRecord
	var graded []*datastore.Item
	var certs []*datastore.CertificationRecord
	blackLabels := 0

	for i := range inputs {
		in := &inputs[i]
		item, ok := byID[in.ItemID]
		if !ok {
			e.logger.Warn("finalized item not found, skipping", "item_id", in.ItemID)
			continue
		}

		if err := e.resolveJob(bc, item); err != nil {
			return err
		}

		record := records[item.ID]
		if record == nil {
			record = &datastore.GradeRecord{ItemID: item.ID}
			records[item.ID] = record
		}
		if record.SeniorWritten() && record.SrGrader != "" && !equalsFold(record.SrGrader, grader.Name) {
			return graderConflictError(item.ID, record.SrGrader)
		}

		record.IsDeactivated = in.Deactivate
		record.SrNotes = in.Notes
		record.SrFrontImgTags = in.ImageTags.Front
		record.SrBackImgTags = in.ImageTags.Back

		if in.CannotGrade {
			record.IsCantGrade = true
			batch = append(batch, record)
			certs = append(certs, e.certification(item, record, now))
			continue
		}
		if in.ServiceUnavailable {
			record.IsSvcUnavailable = true
			record.SvcUnavailableComments = in.ServiceUnavailableComments
			batch = append(batch, record)
			certs = append(certs, e.certification(item, record, now))
			continue
		}

		if err := e.resolveServiceLevel(bc); err != nil {
			return err
		}

		switch {
		case bc.requireSubs:
			if err := validateSubGrades(item.Name, in); err != nil {
				return err
			}
			if err := e.deriveFinalGrade(in, item.Name); err != nil {
				return err
			}
			if isTen(in.FinalGrade) {
				if !record.JuniorWritten() {
					return prematureBlackLabelError(item.ID)
				}
				record.SrIsBlackLabel = true
			} else {
				record.SrIsBlackLabel = false
			}
			writeSeniorGrades(record, in)
		case isTen(in.FinalGrade):
			if !record.JuniorWritten() {
				return prematureBlackLabelError(item.ID)
			}
			if err := validateSubGrades(item.Name, in); err != nil {
				return err
			}
			writeSeniorGrades(record, in)
			record.SrIsBlackLabel = true
		default:
			record.SrAuto = in.Auto
			record.SrMinGrade = in.MinGrade
			record.SrFinalGrade = in.FinalGrade
			record.SrIsBlackLabel = false
		}

		record.SrGradedOn = &now
		record.SrGrader = grader.Name
		record.SrComment = in.Comment
		record.IsGraded = true
		if record.SrIsBlackLabel {
			blackLabels++
		}

		if record.SrFinalGrade != nil {
			master, found, err := e.store.FindGradeMaster(*record.SrFinalGrade)
			if err != nil {
				return err
			}
			if found {
				record.GradeTypeName = master.GradeName
			}
			item.CurrentGrade = record.SrFinalGrade
			graded = append(graded, item)
		}

		batch = append(batch, record)
		certs = append(certs, e.certification(item, record, now))
	}

	if bc.job == nil {
		return noItemsError()
	}
	if err := e.resolveServiceLevel(bc); err != nil {
		return err
	}

	firstQC := e.applyQC(bc, byID, records, grader, now)

	bc.job.Status = datastore.JobGraded
	bc.job.IsGraded = true
	bc.job.GradedBy = grader.Name
	bc.job.GradedOn = &now

	if err := e.store.CommitGradingBatch(&datastore.GradingBatch{
		Job:            bc.job,
		Records:        batch,
		Items:          graded,
		Certifications: certs,
	}); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.GradesFinalized.Inc()
		e.metrics.BatchItemsGraded.Observe(float64(len(batch)))
		for i := 0; i < blackLabels; i++ {
			e.metrics.BlackLabels.Inc()
		}
		if firstQC {
			e.metrics.QCFlagged.Inc()
		}
	}
	e.logger.Info("senior grades finalized",
		"job_no", bc.job.JobNo, "grader", grader.Name, "items", len(batch),
		"qc_applicable", bc.job.QCApplicable)

	actions := []dispatch.Action{
		e.gradedStatusCascade(bc.job, bc.suborder),
		e.labelRefresh(items),
	}
	if firstQC {
		actions = append(actions, e.qcAlert(bc.job))
	}
	e.dispatcher.Run(ctx, actions...)
	return nil
}

// deriveFinalGrade fills in a missing final grade from the four sub-grades
// through the score engine. Inputs that carry an explicit final grade are
// left alone.
func (e *Engine) deriveFinalGrade(in *ItemGradeInput, itemName string) error {
	if in.FinalGrade != nil || e.scorer == nil {
		return nil
	}
	if in.Centering == nil || in.Corners == nil || in.Edges == nil || in.Surface == nil {
		return nil
	}
	start := time.Now()
	result, err := e.scorer.Compute(
		formatGrade(*in.Centering),
		formatGrade(*in.Corners),
		formatGrade(*in.Edges),
		formatGrade(*in.Surface),
	)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	}
	grade, _ := result.Grade.Float64()
	in.FinalGrade = &grade
	e.logger.Debug("final grade computed",
		"item", itemName, "grade", result.Grade, "category", result.Category)
	return nil
}

func formatGrade(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeSeniorGrades copies every senior-phase grade field from the input.
func writeSeniorGrades(record *datastore.GradeRecord, in *ItemGradeInput) {
	record.SrCentering = in.Centering
	record.SrCorners = in.Corners
	record.SrEdges = in.Edges
	record.SrSurface = in.Surface
	record.SrAuto = in.Auto
	record.SrMinGrade = in.MinGrade
	record.SrFinalGrade = in.FinalGrade
}

// applyQC sticky-ORs QC applicability onto the job. It returns true when
// this batch is the first to make the job QC-applicable.
func (e *Engine) applyQC(
	bc *batchContext,
	items map[uint]*datastore.Item,
	records map[uint]*datastore.GradeRecord,
	grader Grader,
	now time.Time,
) bool {
	if bc.job.QCApplicable {
		return false
	}
	qc := &e.settings.Grading.QC
	privileged := false
	for _, tier := range qc.PrivilegedTiers {
		if equalsFold(tier, bc.level.Name) {
			privileged = true
			break
		}
	}
	for _, item := range items {
		record := records[item.ID]
		applicable := item.DeclaredValue >= qc.DeclaredValueThreshold ||
			isTen(item.CurrentGrade) ||
			(record != nil && isTen(record.SrFinalGrade)) ||
			privileged ||
			!equalsFold(bc.suborder.ShipCountry, qc.HomeCountry)
		if applicable {
			bc.job.QCApplicable = true
			bc.job.QCApplicableOn = &now
			bc.job.QCApplicableBy = grader.Name
			return true
		}
	}
	return false
}

// certification builds the audit record of one finalized item. Grade values
// the senior phase never assigned are zero-filled; Active stays false until
// the graded order is received back.
func (e *Engine) certification(item *datastore.Item, record *datastore.GradeRecord, now time.Time) *datastore.CertificationRecord {
	return &datastore.CertificationRecord{
		CertID:        uuid.New().String(),
		ItemID:        item.ID,
		MasterItemID:  item.ItemMasterID,
		ServiceTypeID: e.settings.Grading.DefaultServiceID,
		Centering:     certValue(record.SrCentering),
		Corners:       certValue(record.SrCorners),
		Edges:         certValue(record.SrEdges),
		Surface:       certValue(record.SrSurface),
		Auto:          certValue(record.SrAuto),
		FinalGrade:    certValue(record.SrFinalGrade),
		Category:      item.Category,
		Active:        false,
		Notes:         record.SrComment,
		GradedOn:      now,
	}
}

// certValue zero-fills absent or non-positive grade values.
func certValue(v *float64) decimal.Decimal {
	if v == nil || *v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// prematureBlackLabelError rejects a perfect senior grade on an item whose
// junior phase was never written.
func prematureBlackLabelError(itemID uint) error {
	return errors.Newf("a final grade of 10 needs the junior phase completed first for item %d", itemID).
		Component("workflow").
		Category(errors.CategoryConflict).
		Context("item_id", itemID).
		Build()
}
