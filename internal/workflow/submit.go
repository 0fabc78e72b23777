package workflow

import (
	"context"
	"time"

	"github.com/gradehaus/gradeflow/internal/datastore"
)

// SubmitGrades records the junior phase for a batch of items belonging to
// one job. The whole batch commits or fails atomically; on success the job
// moves to READY_FOR_SENIOR_REVIEW with its grader cleared, and the
// suborder/order status cascade plus CRM sync run post-commit.
func (e *Engine) SubmitGrades(ctx context.Context, grader Grader, inputs []ItemGradeInput) error {
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

	for i := range inputs {
		in := &inputs[i]
		item, ok := byID[in.ItemID]
		if !ok {
			e.logger.Warn("submitted item not found, skipping", "item_id", in.ItemID)
			continue
		}

		record := records[item.ID]
		if record == nil {
			record = &datastore.GradeRecord{ItemID: item.ID}
			records[item.ID] = record
		}
		if record.JuniorWritten() && record.JrGrader != "" && !equalsFold(record.JrGrader, grader.Name) {
			return graderConflictError(item.ID, record.JrGrader)
		}

		record.IsDeactivated = in.Deactivate
		record.JrNotes = in.Notes
		record.JrFrontImgTags = in.ImageTags.Front
		record.JrBackImgTags = in.ImageTags.Back

		if err := e.resolveJob(bc, item); err != nil {
			return err
		}

		if in.CannotGrade {
			record.IsCantGrade = true
			batch = append(batch, record)
			continue
		}
		if in.ServiceUnavailable {
			record.IsSvcUnavailable = true
			record.SvcUnavailableComments = in.ServiceUnavailableComments
			batch = append(batch, record)
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
			writeJuniorGrades(record, in)
			record.JrIsBlackLabel = isTen(in.FinalGrade)
		case isTen(in.FinalGrade):
			// full sub-grades back a perfect grade even on tiers
			// that normally skip them
			if err := validateSubGrades(item.Name, in); err != nil {
				return err
			}
			writeJuniorGrades(record, in)
			record.JrIsBlackLabel = true
		default:
			record.JrAuto = in.Auto
			record.JrMinGrade = in.MinGrade
			record.JrFinalGrade = in.FinalGrade
			record.JrIsBlackLabel = false
		}

		record.IsSecondReview = true
		record.JrGradedOn = &now
		record.JrGrader = grader.Name
		record.JrComment = in.Comment
		batch = append(batch, record)
	}

	if bc.job == nil {
		return noItemsError()
	}

	bc.job.Status = datastore.JobReadyForSeniorReview
	bc.job.GraderID = nil // the senior phase requires explicit reassignment
	bc.job.GradedBy = grader.Name
	bc.job.GradedOn = &now

	if err := e.store.CommitGradingBatch(&datastore.GradingBatch{
		Job:     bc.job,
		Records: batch,
	}); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.GradesSubmitted.Inc()
		e.metrics.BatchItemsGraded.Observe(float64(len(batch)))
	}
	e.logger.Info("junior grades submitted",
		"job_no", bc.job.JobNo, "grader", grader.Name, "items", len(batch))

	e.dispatcher.Run(ctx,
		e.gradingStatusCascade(bc.suborder),
		e.crmStageAction(bc.suborder.CRMDealID, stageL1Graded),
	)
	return nil
}

// writeJuniorGrades copies every junior-phase grade field from the input.
func writeJuniorGrades(record *datastore.GradeRecord, in *ItemGradeInput) {
	record.JrCentering = in.Centering
	record.JrCorners = in.Corners
	record.JrEdges = in.Edges
	record.JrSurface = in.Surface
	record.JrAuto = in.Auto
	record.JrMinGrade = in.MinGrade
	record.JrFinalGrade = in.FinalGrade
}
