// Package workqueue provides the read-only job listing graders work from.
// It consumes the status fields the grading workflow owns but never
// mutates them.
package workqueue

import (
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/logging"
)

// Query narrows and paginates the listing. Zero values mean "no filter";
// PageSize 0 falls back to DefaultPageSize.
type Query struct {
	GraderID       *uint
	ServiceLevelID *uint
	DueDate        string // YYYY-MM-DD
	Statuses       []datastore.JobStatus
	Page           int // 1-based
	PageSize       int
}

// DefaultPageSize bounds unpaginated requests.
const DefaultPageSize = 50

// Row is one job in the work queue, denormalized for display.
type Row struct {
	JobNo        string     `json:"jobNo"`
	SuborderNo   string     `json:"suborderNo"`
	OrderNo      string     `json:"orderNo"`
	ItemCount    int        `json:"itemCount"`
	Status       string     `json:"status"`
	ServiceLevel string     `json:"serviceLevel"`
	DueDate      time.Time  `json:"dueDate"`
	Assignee     string     `json:"assignee,omitempty"`
	GradedBy     string     `json:"gradedBy,omitempty"`
	GradedOn     *time.Time `json:"gradedOn,omitempty"`
	QCApplicable bool       `json:"qcApplicable"`
}

// Page is one page of the listing plus the total match count.
type Page struct {
	Rows     []Row `json:"rows"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// Service resolves work queue pages against the store. Service level names
// are immutable reference data and are cached.
type Service struct {
	store  datastore.Interface
	levels *gocache.Cache
	logger *slog.Logger
}

// New creates a work queue service. The service level cache TTL comes from
// the grading settings; zero keeps entries for the process lifetime.
func New(store datastore.Interface, settings *conf.Settings) *Service {
	ttl := time.Duration(settings.Grading.LookupCacheTTL) * time.Minute
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Service{
		store:  store,
		levels: gocache.New(ttl, 10*time.Minute),
		logger: logging.ForService("workqueue"),
	}
}

// List returns the page of jobs matching the query in the store's stable
// id order.
func (s *Service) List(q Query) (*Page, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	filter := &datastore.WorkQueueFilter{
		GraderID:       q.GraderID,
		ServiceLevelID: q.ServiceLevelID,
		DueDate:        q.DueDate,
		Statuses:       q.Statuses,
		Limit:          pageSize,
		Offset:         (page - 1) * pageSize,
	}
	jobs, total, err := s.store.ListJobs(filter)
	if err != nil {
		return nil, err
	}

	suborders, err := s.subordersFor(jobs)
	if err != nil {
		return nil, err
	}
	orders, err := s.ordersFor(suborders)
	if err != nil {
		return nil, err
	}
	graders, err := s.gradersFor(jobs)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		row := Row{
			JobNo:        job.JobNo,
			ItemCount:    job.ItemCount,
			Status:       string(job.Status),
			GradedBy:     job.GradedBy,
			GradedOn:     job.GradedOn,
			QCApplicable: job.QCApplicable,
		}
		if sub, ok := suborders[job.SuborderID]; ok {
			row.SuborderNo = sub.SuborderNo
			row.DueDate = sub.DueDate
			if order, ok := orders[sub.OrderID]; ok {
				row.OrderNo = order.OrderNo
			}
			name, err := s.serviceLevelName(sub.ServiceLevelID)
			if err != nil {
				return nil, err
			}
			row.ServiceLevel = name
		}
		if job.GraderID != nil {
			row.Assignee = graders[*job.GraderID]
		}
		rows = append(rows, row)
	}

	return &Page{Rows: rows, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *Service) subordersFor(jobs []datastore.Job) (map[uint]datastore.Suborder, error) {
	ids := make([]uint, 0, len(jobs))
	seen := make(map[uint]bool, len(jobs))
	for i := range jobs {
		if !seen[jobs[i].SuborderID] {
			seen[jobs[i].SuborderID] = true
			ids = append(ids, jobs[i].SuborderID)
		}
	}
	byID := make(map[uint]datastore.Suborder, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	suborders, err := s.store.GetSubordersByIDs(ids)
	if err != nil {
		return nil, err
	}
	for i := range suborders {
		byID[suborders[i].ID] = suborders[i]
	}
	return byID, nil
}

func (s *Service) ordersFor(suborders map[uint]datastore.Suborder) (map[uint]datastore.Order, error) {
	ids := make([]uint, 0, len(suborders))
	seen := make(map[uint]bool, len(suborders))
	for _, sub := range suborders {
		if !seen[sub.OrderID] {
			seen[sub.OrderID] = true
			ids = append(ids, sub.OrderID)
		}
	}
	byID := make(map[uint]datastore.Order, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	orders, err := s.store.GetOrdersByIDs(ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		byID[orders[i].ID] = orders[i]
	}
	return byID, nil
}

func (s *Service) gradersFor(jobs []datastore.Job) (map[uint]string, error) {
	ids := make([]uint, 0, len(jobs))
	seen := make(map[uint]bool, len(jobs))
	for i := range jobs {
		if jobs[i].GraderID != nil && !seen[*jobs[i].GraderID] {
			seen[*jobs[i].GraderID] = true
			ids = append(ids, *jobs[i].GraderID)
		}
	}
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	graders, err := s.store.GetGradersByIDs(ids)
	if err != nil {
		return nil, err
	}
	for i := range graders {
		names[graders[i].ID] = graders[i].Name
	}
	return names, nil
}

func (s *Service) serviceLevelName(id uint) (string, error) {
	key := fmt.Sprintf("level:%d", id)
	if cached, found := s.levels.Get(key); found {
		return cached.(string), nil
	}
	level, err := s.store.GetServiceLevel(id)
	if err != nil {
		return "", err
	}
	s.levels.SetDefault(key, level.Name)
	return level.Name, nil
}
