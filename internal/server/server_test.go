package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
	"gitlab.com/kabirsadiq/buildtrack/internal/repository"
)

// stubStore backs every store interface with in-memory state.
type stubStore struct {
	nextID   int
	expenses map[int]*models.Expense
	order    []int
	projects []models.Project
	vendors  []models.Vendor
	sales    []models.Sale
}

func newStubStore() *stubStore {
	return &stubStore{
		expenses: make(map[int]*models.Expense),
		projects: []models.Project{
			{ID: 1, Name: "Maitama Heights", Budget: decimal.NewFromInt(15_000_000), Status: models.ProjectStatusActive},
			{ID: 2, Name: "Garki Site", Budget: decimal.NewFromInt(12_000_000), Status: models.ProjectStatusActive},
		},
	}
}

func (s *stubStore) Create(_ context.Context, e *models.Expense) error {
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = time.Now()
	copied := *e
	s.expenses[e.ID] = &copied
	s.order = append(s.order, e.ID)
	return nil
}

func (s *stubStore) GetByID(_ context.Context, id int) (*models.Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *stubStore) live() []models.Expense {
	var out []models.Expense
	for i := len(s.order) - 1; i >= 0; i-- {
		if e, ok := s.expenses[s.order[i]]; ok && !e.Cancelled {
			out = append(out, *e)
		}
	}
	return out
}

func (s *stubStore) ListSince(_ context.Context, _ time.Time, limit int) ([]models.Expense, error) {
	out := s.live()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) Search(_ context.Context, term string, limit int) ([]models.Expense, error) {
	var out []models.Expense
	for _, e := range s.live() {
		if strings.Contains(strings.ToLower(e.Vendor+" "+e.Project+" "+e.Category), strings.ToLower(term)) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) SummarySince(_ context.Context, _ time.Time) (*models.Summary, error) {
	summary := &models.Summary{
		Total:     decimal.Zero,
		ByProject: make(map[string]decimal.Decimal),
		ByVendor:  make(map[string]decimal.Decimal),
	}
	for _, e := range s.live() {
		summary.Total = summary.Total.Add(e.Amount)
		summary.Count++
		summary.ByProject[e.Project] = summary.ByProject[e.Project].Add(e.Amount)
		summary.ByVendor[e.Vendor] = summary.ByVendor[e.Vendor].Add(e.Amount)
	}
	return summary, nil
}

func (s *stubStore) SpentByProject(_ context.Context, project string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range s.live() {
		if e.Project == project {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (s *stubStore) UpdateFields(_ context.Context, id int, upd repository.ExpenseUpdate) error {
	e, ok := s.expenses[id]
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

func (s *stubStore) Cancel(_ context.Context, id int) error {
	e, ok := s.expenses[id]
	if !ok || e.Cancelled {
		return repository.ErrNotFound
	}
	e.Cancelled = true
	return nil
}

func (s *stubStore) GetAll(_ context.Context) ([]models.Project, error) {
	return s.projects, nil
}

func (s *stubStore) GetByName(_ context.Context, name string) (*models.Project, error) {
	for _, p := range s.projects {
		if strings.EqualFold(p.Name, name) {
			copied := p
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type projectStub struct{ *stubStore }

func (s *stubStore) CreateProject(_ context.Context, p *models.Project) error {
	p.ID = len(s.projects) + 1
	s.projects = append(s.projects, *p)
	return nil
}

func (p projectStub) Create(ctx context.Context, project *models.Project) error {
	return p.CreateProject(ctx, project)
}

type vendorStub struct{ *stubStore }

func (v vendorStub) GetAll(_ context.Context) ([]models.Vendor, error) {
	return v.vendors, nil
}

func (v vendorStub) Upsert(_ context.Context, vendor *models.Vendor) error {
	vendor.ID = len(v.vendors) + 1
	v.stubStore.vendors = append(v.stubStore.vendors, *vendor)
	return nil
}

type saleStub struct{ *stubStore }

func (s saleStub) Create(_ context.Context, sale *models.Sale) error {
	sale.ID = len(s.sales) + 1
	s.stubStore.sales = append(s.stubStore.sales, *sale)
	return nil
}

func (s saleStub) GetAll(_ context.Context) ([]models.Sale, error) {
	return s.sales, nil
}

func (s saleStub) ExistsForProject(_ context.Context, project string) (bool, error) {
	for _, sale := range s.sales {
		if strings.EqualFold(sale.Project, project) {
			return true, nil
		}
	}
	return false, nil
}

// echoReplier returns a fixed reply and records the inbound.
type echoReplier struct {
	reply       string
	lastInbound commands.Inbound
}

func (e *echoReplier) Handle(_ context.Context, in commands.Inbound) string {
	e.lastInbound = in
	return e.reply
}

type recordingNotifier struct {
	notified []*models.Expense
}

func (n *recordingNotifier) NotifyExpense(_ context.Context, e *models.Expense) error {
	n.notified = append(n.notified, e)
	return nil
}

type testEnv struct {
	app      *fiber.App
	store    *stubStore
	replier  *echoReplier
	notifier *recordingNotifier
}

func newTestEnv() *testEnv {
	store := newStubStore()
	replier := &echoReplier{reply: "Recorded: N500k Cement - Maitama Heights (Dangote)"}
	notifier := &recordingNotifier{}
	_, app := New(replier, store, projectStub{store}, vendorStub{store}, saleStub{store}, nil, notifier)
	return &testEnv{app: app, store: store, replier: replier, notifier: notifier}
}

func (e *testEnv) request(t *testing.T, method, path, contentType, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestWhatsAppWebhook(t *testing.T) {
	t.Parallel()

	t.Run("replies with TwiML", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		form := url.Values{
			"From":        {"whatsapp:+2348012345678"},
			"Body":        {"500k cement maitama Dangote"},
			"ProfileName": {"Aliyu"},
		}
		resp := env.request(t, fiber.MethodPost, "/webhook/whatsapp",
			fiber.MIMEApplicationForm, form.Encode())

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/xml")

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.Contains(t, string(body), "<Response><Message>")
		require.Contains(t, string(body), "Recorded: N500k Cement")

		require.Equal(t, "wa:+2348012345678", env.replier.lastInbound.Key)
		require.Equal(t, "Aliyu", env.replier.lastInbound.DisplayName)
		require.Equal(t, models.SourceWhatsApp, env.replier.lastInbound.Source)
	})

	t.Run("long replies are truncated", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		env.replier.reply = strings.Repeat("x", 4000)
		form := url.Values{"From": {"whatsapp:+234"}, "Body": {"list"}}

		resp := env.request(t, fiber.MethodPost, "/webhook/whatsapp",
			fiber.MIMEApplicationForm, form.Encode())
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(body), strings.Repeat("x", maxTwiMLReply))
		require.NotContains(t, string(body), strings.Repeat("x", maxTwiMLReply+1))
	})

	t.Run("empty body still answers 200", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/webhook/whatsapp",
			fiber.MIMEApplicationForm, "From=whatsapp%3A%2B234")
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(body), whatsAppApology)
	})
}

func TestBankSMSWebhook(t *testing.T) {
	t.Parallel()

	t.Run("captures a debit", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/webhook/sms", fiber.MIMEApplicationJSON,
			`{"from": "GTBank", "message": "Amt: NGN250,000.00 DR Desc: TRF TO DANGOTE CEMENT PLC"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		decodeJSON(t, resp, &out)
		require.Equal(t, "captured", out["status"])
		require.Equal(t, "gtbank", out["bank"])

		e, err := env.store.GetByID(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, "bank-sms-gtbank", e.Source)
		require.Equal(t, models.ProjectUnknown, e.Project)
		require.Equal(t, "Cement", e.Category)
		require.True(t, e.Amount.Equal(decimal.NewFromInt(250_000)))

		require.Len(t, env.notifier.notified, 1)
	})

	t.Run("alternate field names", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/webhook/sms", fiber.MIMEApplicationJSON,
			`{"sender": "UBA", "text": "Debit Amount: NGN100,000.00 Narrative: SALARY PAYMENT"}`)

		var out map[string]any
		decodeJSON(t, resp, &out)
		require.Equal(t, "captured", out["status"])
		require.Equal(t, "uba", out["bank"])
	})

	t.Run("non-bank sender is ignored", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/webhook/sms", fiber.MIMEApplicationJSON,
			`{"from": "MTN", "message": "Your data bundle is 90% used."}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		decodeJSON(t, resp, &out)
		require.Equal(t, "ignored", out["status"])
		require.Empty(t, env.store.expenses)
		require.Empty(t, env.notifier.notified)
	})

	t.Run("invalid payload is ignored with 200", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/webhook/sms", fiber.MIMEApplicationJSON,
			`{not json`)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		decodeJSON(t, resp, &out)
		require.Equal(t, "ignored", out["status"])
	})
}

func seedExpense(env *testEnv, amount int64, project, vendor, category string) *models.Expense {
	e := &models.Expense{
		Amount:   decimal.NewFromInt(amount),
		Project:  project,
		Vendor:   vendor,
		Category: category,
		Source:   models.SourceWeb,
	}
	_ = env.store.Create(context.Background(), e)
	return e
}

func TestExpenseAPI(t *testing.T) {
	t.Parallel()

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		seedExpense(env, 500_000, "Maitama Heights", "Dangote", "Cement")

		resp := env.request(t, fiber.MethodGet, "/api/expenses", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Expenses []expenseResponse `json:"expenses"`
			Count    int               `json:"count"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, 1, out.Count)
		require.Equal(t, "Maitama Heights", out.Expenses[0].Project)
	})

	t.Run("create", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/api/expenses", fiber.MIMEApplicationJSON,
			`{"amount": "500000", "project": "Garki Site", "vendor": "Musa"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var out expenseResponse
		decodeJSON(t, resp, &out)
		require.Equal(t, models.SourceWeb, out.Source)
		require.Equal(t, "Other", out.Category)
	})

	t.Run("create rejects non-positive amount", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/api/expenses", fiber.MIMEApplicationJSON,
			`{"amount": "0"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("patch updates fields", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		e := seedExpense(env, 500_000, "Maitama Heights", "Dangote", "Cement")

		resp := env.request(t, fiber.MethodPatch, fmt.Sprintf("/api/expenses/%d", e.ID),
			fiber.MIMEApplicationJSON, `{"project": "Garki Site"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out expenseResponse
		decodeJSON(t, resp, &out)
		require.Equal(t, "Garki Site", out.Project)
		require.Equal(t, "Dangote", out.Vendor)
	})

	t.Run("patch missing expense", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPatch, "/api/expenses/99",
			fiber.MIMEApplicationJSON, `{"project": "Garki Site"}`)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete soft-cancels", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		e := seedExpense(env, 500_000, "Maitama Heights", "Dangote", "Cement")

		resp := env.request(t, fiber.MethodDelete, fmt.Sprintf("/api/expenses/%d", e.ID), "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		stored := env.store.expenses[e.ID]
		require.NotNil(t, stored)
		require.True(t, stored.Cancelled)
	})
}

func TestProjectAPI(t *testing.T) {
	t.Parallel()

	t.Run("list includes balances", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		seedExpense(env, 3_000_000, "Maitama Heights", "Dangote", "Cement")

		resp := env.request(t, fiber.MethodGet, "/api/projects", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Projects []projectResponse `json:"projects"`
		}
		decodeJSON(t, resp, &out)
		require.Len(t, out.Projects, 2)

		maitama := out.Projects[0]
		require.Equal(t, "Maitama Heights", maitama.Name)
		require.True(t, maitama.Spent.Equal(decimal.NewFromInt(3_000_000)))
		require.True(t, maitama.Remaining.Equal(decimal.NewFromInt(12_000_000)))
		require.Equal(t, 20, maitama.Percentage)
		require.Equal(t, models.BandOnTrack, maitama.Band)
	})

	t.Run("create", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/api/projects", fiber.MIMEApplicationJSON,
			`{"name": "Lugbe Gardens", "budget": "10000000", "location": "Lugbe, Abuja"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Len(t, env.store.projects, 3)
	})

	t.Run("create requires a name", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/api/projects", fiber.MIMEApplicationJSON,
			`{"budget": "10000000"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSaleAPI(t *testing.T) {
	t.Parallel()

	t.Run("computes the waterfall", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		seedExpense(env, 14_000_000, "Maitama Heights", "Dangote", "Cement")

		resp := env.request(t, fiber.MethodPost, "/api/sales", fiber.MIMEApplicationJSON,
			`{"project": "Maitama Heights", "sale_price": "25000000"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var out struct {
			Sale    models.Sale `json:"sale"`
			Warning string      `json:"warning"`
		}
		decodeJSON(t, resp, &out)
		require.True(t, out.Sale.TotalCost.Equal(decimal.NewFromInt(14_000_000)))
		require.True(t, out.Sale.NetProfit.Equal(decimal.NewFromInt(8_325_000)), "got %s", out.Sale.NetProfit)
		require.Empty(t, out.Warning)
	})

	t.Run("warns on repeat sale", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		env.store.sales = append(env.store.sales, models.Sale{Project: "Maitama Heights"})

		resp := env.request(t, fiber.MethodPost, "/api/sales", fiber.MIMEApplicationJSON,
			`{"project": "Maitama Heights", "sale_price": "25000000"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var out map[string]any
		decodeJSON(t, resp, &out)
		require.Contains(t, out["warning"], "already has a recorded sale")
	})

	t.Run("unknown project", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/api/sales", fiber.MIMEApplicationJSON,
			`{"project": "Gwarinpa", "sale_price": "25000000"}`)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSummaryAndSearch(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	seedExpense(env, 500_000, "Maitama Heights", "Dangote", "Cement")
	seedExpense(env, 200_000, "Garki Site", "Musa", "Sand")

	t.Run("summary", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/summary?period=week", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Period string                     `json:"period"`
			Total  decimal.Decimal            `json:"total"`
			Count  int                        `json:"count"`
			By     map[string]decimal.Decimal `json:"by_project"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, "week", out.Period)
		require.Equal(t, 2, out.Count)
		require.True(t, out.Total.Equal(decimal.NewFromInt(700_000)))
	})

	t.Run("summary rejects unknown period", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/summary?period=decade", "", "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("search", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/search?q=dangote", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Count int `json:"count"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, 1, out.Count)
	})

	t.Run("search requires a term", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/search", "", "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestParseEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("test parse", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodGet,
			"/api/parse?text="+url.QueryEscape("500k cement maitama Dangote"), "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Parsed   bool            `json:"parsed"`
			Amount   decimal.Decimal `json:"amount"`
			Project  string          `json:"project"`
			Vendor   string          `json:"vendor"`
			Category string          `json:"category"`
		}
		decodeJSON(t, resp, &out)
		require.True(t, out.Parsed)
		require.True(t, out.Amount.Equal(decimal.NewFromInt(500_000)))
		require.Equal(t, "Maitama Heights", out.Project)
		require.Equal(t, "Dangote", out.Vendor)
		require.Equal(t, "Cement", out.Category)
	})

	t.Run("test parse failure", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodGet,
			"/api/parse?text="+url.QueryEscape("hello there"), "", "")

		var out struct {
			Parsed bool `json:"parsed"`
		}
		decodeJSON(t, resp, &out)
		require.False(t, out.Parsed)
	})

	t.Run("ai parse falls back without a client", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		resp := env.request(t, fiber.MethodPost, "/api/ai/parse", fiber.MIMEApplicationJSON,
			`{"message": "500k cement maitama Dangote"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Amount     float64 `json:"amount"`
			Confidence string  `json:"confidence"`
			Project    string  `json:"project"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, "low", out.Confidence)
		require.Equal(t, 500000.0, out.Amount)
		require.Equal(t, "Maitama Heights", out.Project)
	})
}
