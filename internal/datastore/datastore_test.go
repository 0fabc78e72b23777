// datastore_test.go: Unit tests for store operations against in-memory SQLite
package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gradehaus/gradeflow/internal/errors"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DataStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to create test database")

	err = db.AutoMigrate(allModels()...)
	require.NoError(t, err, "Failed to migrate schema")

	return &DataStore{DB: db}
}

func TestCommitGradingBatch(t *testing.T) {
	t.Run("CreatesRecordsAndCertifications", func(t *testing.T) {
		ds := setupTestDB(t)

		job := &Job{JobNo: "J-100", Status: JobGrading, ItemCount: 1}
		require.NoError(t, ds.DB.Create(job).Error)
		item := &Item{JobID: job.ID, Name: "1998 Topps #5"}
		require.NoError(t, ds.DB.Create(item).Error)

		grade := 9.5
		record := &GradeRecord{ItemID: item.ID, JrFinalGrade: &grade, JrGrader: "ajones"}
		job.Status = JobReadyForSeniorReview

		err := ds.CommitGradingBatch(&GradingBatch{
			Job:     job,
			Records: []*GradeRecord{record},
		})
		require.NoError(t, err)
		assert.NotZero(t, record.ID, "record should be created")
		assert.Equal(t, 1, record.Version)

		var stored Job
		require.NoError(t, ds.DB.First(&stored, job.ID).Error)
		assert.Equal(t, JobReadyForSeniorReview, stored.Status)
	})

	t.Run("StaleVersionFailsWholeBatch", func(t *testing.T) {
		ds := setupTestDB(t)

		job := &Job{JobNo: "J-101", Status: JobGrading, Version: 1}
		require.NoError(t, ds.DB.Create(job).Error)
		item := &Item{JobID: job.ID}
		require.NoError(t, ds.DB.Create(item).Error)
		record := &GradeRecord{ItemID: item.ID, Version: 1}
		require.NoError(t, ds.DB.Create(record).Error)

		// simulate a concurrent writer bumping the record version
		require.NoError(t, ds.DB.Model(&GradeRecord{}).Where("id = ?", record.ID).
			Update("version", 2).Error)

		err := ds.CommitGradingBatch(&GradingBatch{Job: job, Records: []*GradeRecord{record}})
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err), "stale version should surface as conflict")
	})
}

func TestUpsertLabel(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	label := &LabelWarehouse{ItemMasterID: "M-77", Line1: "1989 UPPER DECK", Line2: "#1 KEN GRIFFEY JR."}
	require.NoError(t, ds.UpsertLabel(label))

	replacement := &LabelWarehouse{ItemMasterID: "M-77", Line1: "1989 UPPER DECK", Line2: "#1 KEN GRIFFEY JR. (RC)"}
	require.NoError(t, ds.UpsertLabel(replacement))

	var count int64
	require.NoError(t, ds.DB.Model(&LabelWarehouse{}).Where("item_master_id = ?", "M-77").Count(&count).Error)
	assert.EqualValues(t, 1, count, "upsert must be idempotent per item master id")

	var stored LabelWarehouse
	require.NoError(t, ds.DB.Where("item_master_id = ?", "M-77").First(&stored).Error)
	assert.Equal(t, "#1 KEN GRIFFEY JR. (RC)", stored.Line2)
}

func TestLookupQueries(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	require.NoError(t, ds.DB.Create(&FormulaRow{
		Category: "CORNERS", RangeLow: 0, RangeHigh: 0.5,
		W1: 0.4, W2: 0.3, W3: 0.2, W4: 0.1,
	}).Error)
	require.NoError(t, ds.DB.Create(&RoundingRow{RangeLow: 9.0, RangeHigh: 9.49, Round: 9.5}).Error)
	for _, threshold := range []float64{0.25, 0.5, 1.0} {
		require.NoError(t, ds.DB.Create(&TakeoffRow{Threshold: threshold}).Error)
	}
	require.NoError(t, ds.DB.Create(&GradeDescription{Grade: 9.5, Description: "Gem Mint"}).Error)
	require.NoError(t, ds.DB.Create(&GradeDescription{Grade: 9.0, Description: "Mint"}).Error)

	t.Run("FormulaInRange", func(t *testing.T) {
		row, found, err := ds.FindFormula("CORNERS", 0.5)
		require.NoError(t, err)
		require.True(t, found)
		assert.InDelta(t, 0.4, row.W1, 1e-9)
	})

	t.Run("FormulaOutOfRange", func(t *testing.T) {
		_, found, err := ds.FindFormula("CORNERS", 0.75)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("RoundNumberMiss", func(t *testing.T) {
		_, found, err := ds.FindRoundNumber(10.5)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("TakeoffCount", func(t *testing.T) {
		count, err := ds.CountTakeoffsAtOrBelow(0.5)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("DescriptionNearestBand", func(t *testing.T) {
		desc, found, err := ds.FindDescription(9.3)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Mint", desc)
	})
}

func TestListJobs(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	suborder := &Suborder{SuborderNo: "S-1", ServiceLevelID: 2, DueDate: due, Status: SuborderVerified}
	require.NoError(t, ds.DB.Create(suborder).Error)

	graderID := uint(9)
	for i, jobNo := range []string{"J-1", "J-2", "J-3"} {
		job := &Job{JobNo: jobNo, SuborderID: suborder.ID, Status: JobReadyToGrade}
		if i == 0 {
			job.GraderID = &graderID
		}
		require.NoError(t, ds.DB.Create(job).Error)
	}

	t.Run("FilterByGrader", func(t *testing.T) {
		jobs, total, err := ds.ListJobs(&WorkQueueFilter{GraderID: &graderID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, jobs, 1)
		assert.Equal(t, "J-1", jobs[0].JobNo)
	})

	t.Run("Pagination", func(t *testing.T) {
		jobs, total, err := ds.ListJobs(&WorkQueueFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, jobs, 1)
		assert.Equal(t, "J-3", jobs[0].JobNo)
	})

	t.Run("FilterByDueDate", func(t *testing.T) {
		jobs, _, err := ds.ListJobs(&WorkQueueFilter{DueDate: "2026-03-15"})
		require.NoError(t, err)
		assert.Len(t, jobs, 3)
	})
}
