// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log/slog"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/errors"
	"github.com/gradehaus/gradeflow/internal/logging"
	"gorm.io/gorm"
)

// GradingBatch is the unit of work committed by one submit or finalize
// call. All writes succeed or fail together.
type GradingBatch struct {
	Job            *Job
	Records        []*GradeRecord
	Items          []*Item
	Certifications []*CertificationRecord
}

// WorkQueueFilter narrows the job listing returned by ListJobs.
type WorkQueueFilter struct {
	GraderID       *uint
	ServiceLevelID *uint
	DueDate        string // YYYY-MM-DD, matches the suborder due date
	Statuses       []JobStatus
	Limit          int
	Offset         int
}

// Interface abstracts the underlying database implementation and defines
// the operations the workflow, score engine and work queue depend on.
type Interface interface {
	Open() error
	Close() error

	// graders
	GetGrader(id uint) (Grader, error)
	GetGradersByIDs(ids []uint) ([]Grader, error)

	// items and grade records
	GetItemsByIDs(ids []uint) ([]Item, error)
	GetGradeRecords(itemIDs []uint) (map[uint]*GradeRecord, error)

	// jobs and the fulfillment hierarchy
	GetJob(id uint) (Job, error)
	GetJobsByNumbers(jobNos []string) ([]Job, error)
	GetJobsBySuborder(suborderID uint) ([]Job, error)
	GetSuborder(id uint) (Suborder, error)
	GetSubordersByIDs(ids []uint) ([]Suborder, error)
	GetSubordersByOrder(orderID uint) ([]Suborder, error)
	GetOrder(id uint) (Order, error)
	GetOrdersByIDs(ids []uint) ([]Order, error)
	GetServiceLevel(id uint) (ServiceLevel, error)
	GetServiceLevels(ids []uint) ([]ServiceLevel, error)

	// writes
	CommitGradingBatch(batch *GradingBatch) error
	SaveJobs(jobs []*Job) error
	SaveSuborder(suborder *Suborder) error
	SaveOrder(order *Order) error
	UpsertLabel(label *LabelWarehouse) error

	// scoring lookup tables, read-only reference data
	FindFormula(category string, diff float64) (FormulaRow, bool, error)
	FindRoundNumber(sum float64) (float64, bool, error)
	CountTakeoffsAtOrBelow(bump float64) (int, error)
	FindGradeMaster(grade float64) (GradeMaster, bool, error)
	FindDescription(grade float64) (string, bool, error)

	// work queue
	ListJobs(filter *WorkQueueFilter) ([]Job, int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{logger: logging.ForService("datastore")},
			Settings:  settings,
		}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{logger: logging.ForService("datastore")},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// GetGrader retrieves a grader account by id.
func (ds *DataStore) GetGrader(id uint) (Grader, error) {
	var grader Grader
	if err := ds.DB.First(&grader, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Grader{}, notFoundError("grader", id)
		}
		return Grader{}, dbError(err, "get-grader", "grader_id", id)
	}
	return grader, nil
}

// GetGradersByIDs bulk-loads grader accounts by id.
func (ds *DataStore) GetGradersByIDs(ids []uint) ([]Grader, error) {
	var graders []Grader
	if err := ds.DB.Where("id IN ?", ids).Find(&graders).Error; err != nil {
		return nil, dbError(err, "get-graders")
	}
	return graders, nil
}

// GetItemsByIDs bulk-loads items by id.
func (ds *DataStore) GetItemsByIDs(ids []uint) ([]Item, error) {
	var items []Item
	if err := ds.DB.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, dbError(err, "get-items")
	}
	return items, nil
}

// GetGradeRecords bulk-loads the grade records of the given items, keyed by
// item id. Items without a record are absent from the map.
func (ds *DataStore) GetGradeRecords(itemIDs []uint) (map[uint]*GradeRecord, error) {
	var records []GradeRecord
	if err := ds.DB.Where("item_id IN ?", itemIDs).Find(&records).Error; err != nil {
		return nil, dbError(err, "get-grade-records")
	}
	byItem := make(map[uint]*GradeRecord, len(records))
	for i := range records {
		byItem[records[i].ItemID] = &records[i]
	}
	return byItem, nil
}

// GetJob retrieves a job by id.
func (ds *DataStore) GetJob(id uint) (Job, error) {
	var job Job
	if err := ds.DB.First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Job{}, notFoundError("job", id)
		}
		return Job{}, dbError(err, "get-job", "job_id", id)
	}
	return job, nil
}

// GetJobsByNumbers bulk-loads jobs by job number.
func (ds *DataStore) GetJobsByNumbers(jobNos []string) ([]Job, error) {
	var jobs []Job
	if err := ds.DB.Where("job_no IN ?", jobNos).Find(&jobs).Error; err != nil {
		return nil, dbError(err, "get-jobs-by-numbers")
	}
	return jobs, nil
}

// GetJobsBySuborder returns all jobs belonging to a suborder.
func (ds *DataStore) GetJobsBySuborder(suborderID uint) ([]Job, error) {
	var jobs []Job
	if err := ds.DB.Where("suborder_id = ?", suborderID).Find(&jobs).Error; err != nil {
		return nil, dbError(err, "get-jobs-by-suborder", "suborder_id", suborderID)
	}
	return jobs, nil
}

// GetSubordersByIDs bulk-loads suborders by id.
func (ds *DataStore) GetSubordersByIDs(ids []uint) ([]Suborder, error) {
	var suborders []Suborder
	if err := ds.DB.Where("id IN ?", ids).Find(&suborders).Error; err != nil {
		return nil, dbError(err, "get-suborders")
	}
	return suborders, nil
}

// GetSuborder retrieves a suborder by id.
func (ds *DataStore) GetSuborder(id uint) (Suborder, error) {
	var suborder Suborder
	if err := ds.DB.First(&suborder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Suborder{}, notFoundError("suborder", id)
		}
		return Suborder{}, dbError(err, "get-suborder", "suborder_id", id)
	}
	return suborder, nil
}

// GetSubordersByOrder returns all suborders belonging to an order.
func (ds *DataStore) GetSubordersByOrder(orderID uint) ([]Suborder, error) {
	var suborders []Suborder
	if err := ds.DB.Where("order_id = ?", orderID).Find(&suborders).Error; err != nil {
		return nil, dbError(err, "get-suborders-by-order", "order_id", orderID)
	}
	return suborders, nil
}

// GetOrdersByIDs bulk-loads orders by id.
func (ds *DataStore) GetOrdersByIDs(ids []uint) ([]Order, error) {
	var orders []Order
	if err := ds.DB.Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, dbError(err, "get-orders")
	}
	return orders, nil
}

// GetOrder retrieves an order by id.
func (ds *DataStore) GetOrder(id uint) (Order, error) {
	var order Order
	if err := ds.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, notFoundError("order", id)
		}
		return Order{}, dbError(err, "get-order", "order_id", id)
	}
	return order, nil
}

// GetServiceLevel retrieves a service level by id.
func (ds *DataStore) GetServiceLevel(id uint) (ServiceLevel, error) {
	var level ServiceLevel
	if err := ds.DB.First(&level, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ServiceLevel{}, notFoundError("service level", id)
		}
		return ServiceLevel{}, dbError(err, "get-service-level", "service_level_id", id)
	}
	return level, nil
}

// GetServiceLevels bulk-loads service levels by id.
func (ds *DataStore) GetServiceLevels(ids []uint) ([]ServiceLevel, error) {
	var levels []ServiceLevel
	if err := ds.DB.Where("id IN ?", ids).Find(&levels).Error; err != nil {
		return nil, dbError(err, "get-service-levels")
	}
	return levels, nil
}

// CommitGradingBatch stores the writes of one submit or finalize call as a
// single transaction. Existing grade records and the job carry an
// optimistic version; a stale version fails the whole batch with a
// conflict error so concurrent calls on the same item serialize.
func (ds *DataStore) CommitGradingBatch(batch *GradingBatch) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return dbError(tx.Error, "begin-grading-batch")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if batch.Job != nil {
		if err := saveVersioned(tx, batch.Job, batch.Job.ID, &batch.Job.Version); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, record := range batch.Records {
		if err := saveVersioned(tx, record, record.ID, &record.Version); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, item := range batch.Items {
		if err := tx.Save(item).Error; err != nil {
			tx.Rollback()
			return dbError(err, "save-item", "item_id", item.ID)
		}
	}
	for _, cert := range batch.Certifications {
		if err := tx.Create(cert).Error; err != nil {
			tx.Rollback()
			return dbError(err, "create-certification", "item_id", cert.ItemID)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return dbError(err, "commit-grading-batch")
	}
	return nil
}

// saveVersioned creates a new row or updates an existing one guarded by its
// version column.
func saveVersioned(tx *gorm.DB, model any, id uint, version *int) error {
	if id == 0 {
		*version = 1
		if err := tx.Create(model).Error; err != nil {
			return dbError(err, "create-versioned")
		}
		return nil
	}
	current := *version
	*version = current + 1
	result := tx.Model(model).Where("version = ?", current).Select("*").Updates(model)
	if result.Error != nil {
		*version = current
		return dbError(result.Error, "update-versioned", "id", id)
	}
	if result.RowsAffected == 0 {
		*version = current
		return errors.Newf("record %d was modified concurrently", id).
			Component("datastore").
			Category(errors.CategoryConflict).
			Context("id", id).
			Build()
	}
	return nil
}

// SaveJobs persists the given jobs.
func (ds *DataStore) SaveJobs(jobs []*Job) error {
	for _, job := range jobs {
		if err := ds.DB.Save(job).Error; err != nil {
			return dbError(err, "save-job", "job_no", job.JobNo)
		}
	}
	return nil
}

// SaveSuborder persists a suborder.
func (ds *DataStore) SaveSuborder(suborder *Suborder) error {
	if err := ds.DB.Save(suborder).Error; err != nil {
		return dbError(err, "save-suborder", "suborder_no", suborder.SuborderNo)
	}
	return nil
}

// SaveOrder persists an order.
func (ds *DataStore) SaveOrder(order *Order) error {
	if err := ds.DB.Save(order).Error; err != nil {
		return dbError(err, "save-order", "order_no", order.OrderNo)
	}
	return nil
}

// UpsertLabel creates or replaces the label lines for an item master id.
func (ds *DataStore) UpsertLabel(label *LabelWarehouse) error {
	var existing LabelWarehouse
	err := ds.DB.Where("item_master_id = ?", label.ItemMasterID).First(&existing).Error
	switch {
	case err == nil:
		label.ID = existing.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		// new row
	default:
		return dbError(err, "find-label", "item_master_id", label.ItemMasterID)
	}
	if err := ds.DB.Save(label).Error; err != nil {
		return dbError(err, "upsert-label", "item_master_id", label.ItemMasterID)
	}
	return nil
}

// FindFormula returns the weight quadruple whose closed range contains diff
// for the given category. The second return value is false when no range
// matches.
func (ds *DataStore) FindFormula(category string, diff float64) (FormulaRow, bool, error) {
	var row FormulaRow
	err := ds.DB.Where("category = ? AND range_low <= ? AND range_high >= ?", category, diff, diff).
		Order("id").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FormulaRow{}, false, nil
		}
		return FormulaRow{}, false, dbError(err, "find-formula", "category", category)
	}
	return row, true, nil
}

// FindRoundNumber returns the round number whose closed range contains the
// formula sum. The second return value is false when no range matches.
func (ds *DataStore) FindRoundNumber(sum float64) (float64, bool, error) {
	var row RoundingRow
	err := ds.DB.Where("range_low <= ? AND range_high >= ?", sum, sum).
		Order("id").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, dbError(err, "find-round-number")
	}
	return row.Round, true, nil
}

// CountTakeoffsAtOrBelow counts the takeoff thresholds at or below bump.
func (ds *DataStore) CountTakeoffsAtOrBelow(bump float64) (int, error) {
	var count int64
	if err := ds.DB.Model(&TakeoffRow{}).Where("threshold <= ?", bump).Count(&count).Error; err != nil {
		return 0, dbError(err, "count-takeoffs")
	}
	return int(count), nil
}

// FindGradeMaster returns the grade-type row for an exact numeric grade.
func (ds *DataStore) FindGradeMaster(grade float64) (GradeMaster, bool, error) {
	var master GradeMaster
	err := ds.DB.Where("grade_value = ?", grade).First(&master).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GradeMaster{}, false, nil
		}
		return GradeMaster{}, false, dbError(err, "find-grade-master")
	}
	return master, true, nil
}

// FindDescription returns the description for a grade, preferring an exact
// match and falling back to the nearest band at or below the grade.
func (ds *DataStore) FindDescription(grade float64) (string, bool, error) {
	var desc GradeDescription
	err := ds.DB.Where("grade = ?", grade).First(&desc).Error
	if err == nil {
		return desc.Description, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, dbError(err, "find-description")
	}
	err = ds.DB.Where("grade <= ?", grade).Order("grade DESC").First(&desc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, dbError(err, "find-description-band")
	}
	return desc.Description, true, nil
}

// ListJobs returns a filtered, paginated page of jobs together with the
// total count of matching rows. The listing is read-only over the
// workflow-owned status fields.
func (ds *DataStore) ListJobs(filter *WorkQueueFilter) ([]Job, int64, error) {
	query := ds.DB.Model(&Job{}).
		Joins("JOIN suborders ON suborders.id = jobs.suborder_id")

	if filter.GraderID != nil {
		query = query.Where("jobs.grader_id = ?", *filter.GraderID)
	}
	if filter.ServiceLevelID != nil {
		query = query.Where("suborders.service_level_id = ?", *filter.ServiceLevelID)
	}
	if filter.DueDate != "" {
		query = query.Where("DATE(suborders.due_date) = ?", filter.DueDate)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("jobs.status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, dbError(err, "count-work-queue")
	}

	var jobs []Job
	query = query.Order("jobs.id")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, 0, dbError(err, "list-work-queue")
	}
	return jobs, total, nil
}
