package workqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/datastore"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	settings := &conf.Settings{
		Database: conf.DatabaseSettings{SQLite: conf.SQLiteSettings{Enabled: true, Path: ":memory:"}},
		Grading:  conf.GradingSettings{LookupCacheTTL: 5},
	}
	store := datastore.New(settings)
	require.NoError(t, store.Open())
	db := store.(*datastore.SQLiteStore).DB

	require.NoError(t, db.Create(&datastore.ServiceLevel{Name: "Express"}).Error)
	require.NoError(t, db.Create(&datastore.ServiceLevel{Name: "Value"}).Error)
	require.NoError(t, db.Create(&datastore.Grader{Name: "ajones", Level: datastore.GraderLevelJunior, Active: true}).Error)

	order := datastore.Order{OrderNo: "ORD-1", Status: datastore.OrderVerified}
	require.NoError(t, db.Create(&order).Error)

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	subExpress := datastore.Suborder{SuborderNo: "SUB-1", OrderID: order.ID, ServiceLevelID: 1, DueDate: due, Status: datastore.SuborderVerified}
	subValue := datastore.Suborder{SuborderNo: "SUB-2", OrderID: order.ID, ServiceLevelID: 2, DueDate: due.AddDate(0, 0, 7), Status: datastore.SuborderVerified}
	require.NoError(t, db.Create(&subExpress).Error)
	require.NoError(t, db.Create(&subValue).Error)

	graderID := uint(1)
	jobs := []datastore.Job{
		{JobNo: "JOB-1", SuborderID: subExpress.ID, ItemCount: 5, Status: datastore.JobGrading, GraderID: &graderID, Version: 1},
		{JobNo: "JOB-2", SuborderID: subExpress.ID, ItemCount: 3, Status: datastore.JobReadyToGrade, Version: 1},
		{JobNo: "JOB-3", SuborderID: subValue.ID, ItemCount: 8, Status: datastore.JobGraded, GradedBy: "bsenior", Version: 1},
	}
	for i := range jobs {
		require.NoError(t, db.Create(&jobs[i]).Error)
	}

	return New(store, settings), db
}

func TestListUnfiltered(t *testing.T) {
	svc, _ := setupService(t)

	page, err := svc.List(Query{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	first := page.Rows[0]
	assert.Equal(t, "JOB-1", first.JobNo)
	assert.Equal(t, "SUB-1", first.SuborderNo)
	assert.Equal(t, "ORD-1", first.OrderNo)
	assert.Equal(t, "Express", first.ServiceLevel)
	assert.Equal(t, "ajones", first.Assignee)
	assert.Equal(t, 5, first.ItemCount)

	second := page.Rows[1]
	assert.Empty(t, second.Assignee)

	third := page.Rows[2]
	assert.Equal(t, "Value", third.ServiceLevel)
	assert.Equal(t, "bsenior", third.GradedBy)
}

func TestListFilters(t *testing.T) {
	svc, _ := setupService(t)

	t.Run("ByGrader", func(t *testing.T) {
		graderID := uint(1)
		page, err := svc.List(Query{GraderID: &graderID})
		require.NoError(t, err)
		require.Len(t, page.Rows, 1)
		assert.Equal(t, "JOB-1", page.Rows[0].JobNo)
	})

	t.Run("ByServiceLevel", func(t *testing.T) {
		levelID := uint(2)
		page, err := svc.List(Query{ServiceLevelID: &levelID})
		require.NoError(t, err)
		require.Len(t, page.Rows, 1)
		assert.Equal(t, "JOB-3", page.Rows[0].JobNo)
	})

	t.Run("ByStatus", func(t *testing.T) {
		page, err := svc.List(Query{Statuses: []datastore.JobStatus{datastore.JobReadyToGrade, datastore.JobGrading}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
	})

	t.Run("ByDueDate", func(t *testing.T) {
		page, err := svc.List(Query{DueDate: "2026-09-15"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
	})

	t.Run("NoMatches", func(t *testing.T) {
		page, err := svc.List(Query{DueDate: "2001-01-01"})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Rows)
	})
}

func TestListPagination(t *testing.T) {
	svc, _ := setupService(t)

	first, err := svc.List(Query{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.Total)
	require.Len(t, first.Rows, 2)
	assert.Equal(t, "JOB-1", first.Rows[0].JobNo)

	second, err := svc.List(Query{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, second.Total)
	require.Len(t, second.Rows, 1)
	assert.Equal(t, "JOB-3", second.Rows[0].JobNo)
}

func TestServiceLevelNameCached(t *testing.T) {
	svc, db := setupService(t)

	_, err := svc.List(Query{})
	require.NoError(t, err)

	// stale names keep being served from the cache
	require.NoError(t, db.Model(&datastore.ServiceLevel{}).Where("id = ?", 1).Update("name", "Renamed").Error)
	page, err := svc.List(Query{})
	require.NoError(t, err)
	assert.Equal(t, "Express", page.Rows[0].ServiceLevel)
}
