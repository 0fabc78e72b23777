package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gradehaus/gradeflow/internal/crm"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/dispatch"
	"github.com/gradehaus/gradeflow/internal/notify"
)

const invoiceNoPrefix = "INV-"

// deal stages pushed to the CRM as grading progresses.
const (
	stageL1Graded = crm.StageL1Graded
	stageGraded   = crm.StageGraded
)

// gradingStatusCascade advances the suborder and its order to GRADING after
// a junior submit. Idempotent: re-running writes the same status.
func (e *Engine) gradingStatusCascade(suborder *datastore.Suborder) dispatch.Action {
	return dispatch.ActionFunc{
		ActionName: "grading-status-cascade",
		Fn: func(ctx context.Context) error {
			sub := *suborder
			sub.Status = datastore.SuborderGrading
			if err := e.store.SaveSuborder(&sub); err != nil {
				return err
			}
			order, err := e.store.GetOrder(sub.OrderID)
			if err != nil {
				return err
			}
			order.Status = datastore.OrderGrading
			if err := e.store.SaveOrder(&order); err != nil {
				return err
			}
			e.logger.Info("suborder and order moved to grading", "suborder_no", sub.SuborderNo)
			return nil
		},
	}
}

// crmStageAction pushes a deal stage to the CRM.
func (e *Engine) crmStageAction(dealID string, stage crm.DealStage) dispatch.Action {
	return dispatch.ActionFunc{
		ActionName: "crm-stage-" + strings.ToLower(string(stage)),
		Fn: func(ctx context.Context) error {
			if dealID == "" {
				e.logger.Debug("suborder has no crm deal, skipping stage sync", "stage", stage)
				return nil
			}
			return e.crm.UpdateDealStage(ctx, dealID, stage)
		},
	}
}

// gradedStatusCascade re-checks the fulfillment hierarchy after a finalize:
// when every job under the suborder is graded the suborder advances to
// GRADED, the CRM deal moves with it and the customer is notified; when
// every suborder under the order is graded the order advances too.
func (e *Engine) gradedStatusCascade(job *datastore.Job, suborder *datastore.Suborder) dispatch.Action {
	return dispatch.ActionFunc{
		ActionName: "graded-status-cascade",
		Fn: func(ctx context.Context) error {
			jobs, err := e.store.GetJobsBySuborder(suborder.ID)
			if err != nil {
				return err
			}
			for i := range jobs {
				if jobs[i].ID != job.ID && !jobs[i].IsGraded {
					e.logger.Info("suborder still has ungraded jobs, skipping cascade",
						"suborder_no", suborder.SuborderNo, "job_no", jobs[i].JobNo)
					return nil
				}
			}

			now := time.Now()
			sub := *suborder
			sub.Status = datastore.SuborderGraded
			sub.IsGraded = true
			sub.GradedOn = &now
			if err := e.store.SaveSuborder(&sub); err != nil {
				return err
			}

			if sub.CRMDealID != "" {
				if err := e.crm.UpdateDealStage(ctx, sub.CRMDealID, stageGraded); err != nil {
					e.logger.Error("crm graded-stage sync failed", "suborder_no", sub.SuborderNo, "error", err)
				}
			}

			order, err := e.store.GetOrder(sub.OrderID)
			if err != nil {
				return err
			}
			if order.CustomerEmail != "" {
				email := notify.SuborderGradedEmail(
					order.CustomerEmail,
					firstName(order.CustomerName),
					sub.SuborderNo,
					invoiceNoPrefix+sub.SuborderNo,
				)
				if err := e.notifier.SendEmail(ctx, email); err != nil {
					e.logger.Error("suborder-graded email failed", "suborder_no", sub.SuborderNo, "error", err)
				}
			}

			suborders, err := e.store.GetSubordersByOrder(order.ID)
			if err != nil {
				return err
			}
			for i := range suborders {
				if suborders[i].ID != sub.ID && !suborders[i].IsGraded {
					return nil
				}
			}
			order.Status = datastore.OrderGraded
			if err := e.store.SaveOrder(&order); err != nil {
				return err
			}
			e.logger.Info("order fully graded", "order_no", order.OrderNo)
			return nil
		},
	}
}

// labelRefresh regenerates warehouse print labels for the batch's items.
func (e *Engine) labelRefresh(items []datastore.Item) dispatch.Action {
	return dispatch.ActionFunc{
		ActionName: "label-refresh",
		Fn: func(ctx context.Context) error {
			e.labels.RefreshItems(ctx, e.store, items)
			return nil
		},
	}
}

// qcAlert pushes an ops alert the first time a job becomes QC-applicable.
func (e *Engine) qcAlert(job *datastore.Job) dispatch.Action {
	return dispatch.ActionFunc{
		ActionName: "qc-alert",
		Fn: func(ctx context.Context) error {
			e.pusher.Push("QC review required",
				fmt.Sprintf("Job %s was flagged for quality control by %s.", job.JobNo, job.QCApplicableBy))
			return nil
		},
	}
}

// firstName extracts the leading name token for the email template.
func firstName(fullName string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(fullName), " ")
	return name
}
