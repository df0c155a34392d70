package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/gemini"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
	"gitlab.com/kabirsadiq/buildtrack/internal/parser"
	"gitlab.com/kabirsadiq/buildtrack/internal/repository"
)

const (
	defaultListLimit = 100
	searchLimit      = 20
)

type expenseResponse struct {
	ID           int             `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Project      string          `json:"project"`
	Vendor       string          `json:"vendor"`
	Category     string          `json:"category"`
	Source       string          `json:"source"`
	Description  string          `json:"description"`
	OriginalText string          `json:"original_text"`
	EnteredBy    string          `json:"entered_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toExpenseResponse(e models.Expense) expenseResponse {
	return expenseResponse{
		ID:           e.ID,
		Amount:       e.Amount,
		Project:      e.Project,
		Vendor:       e.Vendor,
		Category:     e.Category,
		Source:       e.Source,
		Description:  e.Description,
		OriginalText: e.OriginalText,
		EnteredBy:    e.EnteredBy,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (s *Server) listExpenses(c *fiber.Ctx) error {
	period := c.Query("period", "month")
	cutoff, ok := commands.PeriodCutoff(period, time.Now())
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "period must be today, week, month or year")
	}
	limit := c.QueryInt("limit", defaultListLimit)
	if limit < 1 || limit > 1000 {
		limit = defaultListLimit
	}

	expenses, err := s.expenses.ListSince(c.UserContext(), cutoff, limit)
	if err != nil {
		return err
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return c.JSON(fiber.Map{"expenses": out, "count": len(out)})
}

type createExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Project     string          `json:"project"`
	Vendor      string          `json:"vendor"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	EnteredBy   string          `json:"entered_by"`
}

func (s *Server) createExpense(c *fiber.Ctx) error {
	var req createExpenseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	e := &models.Expense{
		Amount:      req.Amount,
		Project:     orDefault(req.Project, models.ProjectUnassigned),
		Vendor:      orDefault(req.Vendor, models.VendorUnknown),
		Category:    orDefault(req.Category, models.CategoryOther),
		Source:      models.SourceWeb,
		Description: req.Description,
		EnteredBy:   req.EnteredBy,
	}
	if err := s.expenses.Create(c.UserContext(), e); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toExpenseResponse(*e))
}

type updateExpenseRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Project     *string          `json:"project"`
	Vendor      *string          `json:"vendor"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
}

func (s *Server) updateExpense(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid expense id")
	}
	var req updateExpenseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	upd := repository.ExpenseUpdate{
		Amount:      req.Amount,
		Project:     req.Project,
		Vendor:      req.Vendor,
		Category:    req.Category,
		Description: req.Description,
	}
	if err := s.expenses.UpdateFields(c.UserContext(), id, upd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "expense not found")
		}
		return err
	}

	e, err := s.expenses.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toExpenseResponse(*e))
}

// deleteExpense soft-cancels; the row stays for audit.
func (s *Server) deleteExpense(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid expense id")
	}
	if err := s.expenses.Cancel(c.UserContext(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "expense not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"status": "cancelled", "id": id})
}

type projectResponse struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Budget     decimal.Decimal `json:"budget"`
	Location   string          `json:"location"`
	Status     string          `json:"status"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage int             `json:"percentage"`
	Band       string          `json:"band"`
}

func (s *Server) listProjects(c *fiber.Ctx) error {
	projects, err := s.projects.GetAll(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		spent, err := s.expenses.SpentByProject(c.UserContext(), p.Name)
		if err != nil {
			return err
		}
		bal := models.NewBalance(p.Name, p.Budget, spent)
		out = append(out, projectResponse{
			ID:         p.ID,
			Name:       p.Name,
			Budget:     p.Budget,
			Location:   p.Location,
			Status:     p.Status,
			Spent:      bal.Spent,
			Remaining:  bal.Remaining,
			Percentage: bal.Percentage,
			Band:       bal.Band,
		})
	}
	return c.JSON(fiber.Map{"projects": out})
}

type createProjectRequest struct {
	Name     string          `json:"name"`
	Budget   decimal.Decimal `json:"budget"`
	Location string          `json:"location"`
	Status   string          `json:"status"`
}

func (s *Server) createProject(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if !req.Budget.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "budget must be positive")
	}

	p := &models.Project{
		Name:     strings.TrimSpace(req.Name),
		Budget:   req.Budget,
		Location: req.Location,
		Status:   req.Status,
	}
	if err := s.projects.Create(c.UserContext(), p); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) listVendors(c *fiber.Ctx) error {
	vendors, err := s.vendors.GetAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"vendors": vendors})
}

func (s *Server) upsertVendor(c *fiber.Ctx) error {
	var v models.Vendor
	if err := c.BodyParser(&v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(v.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if err := s.vendors.Upsert(c.UserContext(), &v); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (s *Server) listSales(c *fiber.Ctx) error {
	sales, err := s.sales.GetAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sales": sales})
}

type createSaleRequest struct {
	Project   string          `json:"project"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

// createSale computes the full profit waterfall from the project's recorded
// spend. Selling an already-sold project is allowed but flagged.
func (s *Server) createSale(c *fiber.Ctx) error {
	var req createSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if !req.SalePrice.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "sale_price must be positive")
	}

	project, err := s.projects.GetByName(c.UserContext(), req.Project)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "project not found")
		}
		return err
	}

	alreadySold, err := s.sales.ExistsForProject(c.UserContext(), project.Name)
	if err != nil {
		return err
	}

	totalCost, err := s.expenses.SpentByProject(c.UserContext(), project.Name)
	if err != nil {
		return err
	}

	sale := models.NewSale(project.Name, req.SalePrice, totalCost)
	if err := s.sales.Create(c.UserContext(), &sale); err != nil {
		return err
	}

	resp := fiber.Map{"sale": sale}
	if alreadySold {
		resp["warning"] = "project already has a recorded sale"
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) getSummary(c *fiber.Ctx) error {
	period := c.Query("period", "today")
	cutoff, ok := commands.PeriodCutoff(period, time.Now())
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "period must be today, week, month or year")
	}

	summary, err := s.expenses.SummarySince(c.UserContext(), cutoff)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"period":     period,
		"total":      summary.Total,
		"count":      summary.Count,
		"by_project": summary.ByProject,
		"by_vendor":  summary.ByVendor,
	})
}

func (s *Server) searchExpenses(c *fiber.Ctx) error {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q is required")
	}

	expenses, err := s.expenses.Search(c.UserContext(), term, searchLimit)
	if err != nil {
		return err
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return c.JSON(fiber.Map{"expenses": out, "count": len(out)})
}

// testParse exposes the rule-based parser for debugging message formats.
func (s *Server) testParse(c *fiber.Ctx) error {
	text := c.Query("text")
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	parsed := parser.ParseExpense(text, parser.DefaultRuleset())
	if parsed == nil {
		return c.JSON(fiber.Map{"parsed": false})
	}
	return c.JSON(fiber.Map{
		"parsed":   true,
		"amount":   parsed.Amount,
		"project":  parsed.Project,
		"vendor":   parsed.Vendor,
		"category": parsed.Category,
	})
}

type aiParseRequest struct {
	Message string `json:"message"`
}

func (s *Server) aiParse(c *fiber.Ctx) error {
	var req aiParseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message is required")
	}

	extractor := s.ai
	if extractor == nil {
		// no API key configured; the nil client still falls back to rules
		var fallback *gemini.Client
		extractor = fallback
	}
	extraction := extractor.ExtractExpense(c.UserContext(), req.Message)
	return c.JSON(extraction)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

