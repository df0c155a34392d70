package commands

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/kabirsadiq/buildtrack/internal/models"
	"gitlab.com/kabirsadiq/buildtrack/internal/repository"
)

// fakeExpenseStore is an in-memory ExpenseStore for interpreter tests.
type fakeExpenseStore struct {
	nextID   int
	expenses map[int]*models.Expense
	order    []int

	createErr error
}

func newFakeExpenseStore() *fakeExpenseStore {
	return &fakeExpenseStore{expenses: make(map[int]*models.Expense)}
}

func (f *fakeExpenseStore) add(amount int64, project, vendor, category, enteredBy string) *models.Expense {
	e := &models.Expense{
		Amount:    decimal.NewFromInt(amount),
		Project:   project,
		Vendor:    vendor,
		Category:  category,
		Source:    models.SourceTelegram,
		EnteredBy: enteredBy,
		CreatedAt: time.Now(),
	}
	_ = f.Create(context.Background(), e)
	return e
}

func (f *fakeExpenseStore) Create(_ context.Context, e *models.Expense) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	e.ID = f.nextID
	copied := *e
	f.expenses[e.ID] = &copied
	f.order = append(f.order, e.ID)
	return nil
}

func (f *fakeExpenseStore) GetByID(_ context.Context, id int) (*models.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeExpenseStore) live() []models.Expense {
	var out []models.Expense
	for i := len(f.order) - 1; i >= 0; i-- {
		e := f.expenses[f.order[i]]
		if e != nil && !e.Cancelled {
			out = append(out, *e)
		}
	}
	return out
}

func (f *fakeExpenseStore) Recent(_ context.Context, limit int) ([]models.Expense, error) {
	out := f.live()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeExpenseStore) Search(_ context.Context, term string, limit int) ([]models.Expense, error) {
	term = strings.ToLower(term)
	var out []models.Expense
	for _, e := range f.live() {
		haystack := strings.ToLower(e.Vendor + " " + e.Category + " " + e.Project + " " + e.OriginalText)
		if strings.Contains(haystack, term) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeExpenseStore) SumSince(_ context.Context, since time.Time) (decimal.Decimal, int, error) {
	total := decimal.Zero
	count := 0
	for _, e := range f.live() {
		if !e.CreatedAt.Before(since) {
			total = total.Add(e.Amount)
			count++
		}
	}
	return total, count, nil
}

func (f *fakeExpenseStore) SummarySince(_ context.Context, since time.Time) (*models.Summary, error) {
	s := &models.Summary{
		Total:     decimal.Zero,
		ByProject: make(map[string]decimal.Decimal),
		ByVendor:  make(map[string]decimal.Decimal),
	}
	for _, e := range f.live() {
		if e.CreatedAt.Before(since) {
			continue
		}
		s.Total = s.Total.Add(e.Amount)
		s.Count++
		s.ByProject[e.Project] = s.ByProject[e.Project].Add(e.Amount)
		s.ByVendor[e.Vendor] = s.ByVendor[e.Vendor].Add(e.Amount)
	}
	return s, nil
}

func (f *fakeExpenseStore) SpentByProject(_ context.Context, project string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range f.live() {
		if e.Project == project {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (f *fakeExpenseStore) TotalsByActor(_ context.Context) ([]repository.ActorTotal, error) {
	byActor := make(map[string]*repository.ActorTotal)
	for _, e := range f.live() {
		t, ok := byActor[e.EnteredBy]
		if !ok {
			t = &repository.ActorTotal{EnteredBy: e.EnteredBy, Total: decimal.Zero}
			byActor[e.EnteredBy] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}
	var totals []repository.ActorTotal
	for _, t := range byActor {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(a, b int) bool {
		return totals[a].Total.GreaterThan(totals[b].Total)
	})
	return totals, nil
}

func (f *fakeExpenseStore) UpdateAmount(_ context.Context, id int, amount decimal.Decimal) error {
	e, ok := f.expenses[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Amount = amount
	return nil
}

func (f *fakeExpenseStore) UpdateFields(_ context.Context, id int, upd repository.ExpenseUpdate) error {
	e, ok := f.expenses[id]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Amount != nil {
		e.Amount = *upd.Amount
	}
	if upd.Project != nil {
		e.Project = *upd.Project
	}
	if upd.Vendor != nil {
		e.Vendor = *upd.Vendor
	}
	if upd.Category != nil {
		e.Category = *upd.Category
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	return nil
}

func (f *fakeExpenseStore) Cancel(_ context.Context, id int) error {
	e, ok := f.expenses[id]
	if !ok || e.Cancelled {
		return repository.ErrNotFound
	}
	e.Cancelled = true
	return nil
}

func (f *fakeExpenseStore) Delete(_ context.Context, id int) error {
	if _, ok := f.expenses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.expenses, id)
	return nil
}

// fakeProjectStore serves the canonical projects from memory.
type fakeProjectStore struct {
	projects []models.Project
}

func newFakeProjectStore() *fakeProjectStore {
	names := []struct {
		name   string
		budget int64
	}{
		{"Maitama Heights", 15_000_000},
		{"Garki Site", 12_000_000},
		{"Katampe Hills Estate", 20_000_000},
		{"Asokoro Residences", 18_000_000},
		{"Jabi Lakeside", 25_000_000},
		{"Wuse II Towers", 30_000_000},
	}
	f := &fakeProjectStore{}
	for i, n := range names {
		f.projects = append(f.projects, models.Project{
			ID:     i + 1,
			Name:   n.name,
			Budget: decimal.NewFromInt(n.budget),
			Status: models.ProjectStatusActive,
		})
	}
	return f
}

func (f *fakeProjectStore) GetByName(_ context.Context, name string) (*models.Project, error) {
	for _, p := range f.projects {
		if strings.EqualFold(p.Name, name) {
			copied := p
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProjectStore) FindByFragment(ctx context.Context, fragment string) (*models.Project, error) {
	if p, err := f.GetByName(ctx, fragment); err == nil {
		return p, nil
	}
	for _, p := range f.projects {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(fragment)) {
			copied := p
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakeSaleStore marks projects as sold.
type fakeSaleStore struct {
	sold map[string]bool
}

func newFakeSaleStore() *fakeSaleStore {
	return &fakeSaleStore{sold: make(map[string]bool)}
}

func (f *fakeSaleStore) ExistsForProject(_ context.Context, project string) (bool, error) {
	return f.sold[strings.ToLower(project)], nil
}
