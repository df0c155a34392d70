// Package server exposes the HTTP surface: messaging webhooks for WhatsApp
// and bank-SMS forwarders, and the JSON API the web dashboard consumes.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"

	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/gemini"
	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
	"gitlab.com/kabirsadiq/buildtrack/internal/repository"
)

// Replier turns a chat message into a reply. Implemented by
// commands.Interpreter.
type Replier interface {
	Handle(ctx context.Context, in commands.Inbound) string
}

// ExpenseAPI is the expense access the HTTP handlers need.
type ExpenseAPI interface {
	Create(ctx context.Context, e *models.Expense) error
	GetByID(ctx context.Context, id int) (*models.Expense, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.Expense, error)
	Search(ctx context.Context, term string, limit int) ([]models.Expense, error)
	SummarySince(ctx context.Context, since time.Time) (*models.Summary, error)
	SpentByProject(ctx context.Context, project string) (decimal.Decimal, error)
	UpdateFields(ctx context.Context, id int, upd repository.ExpenseUpdate) error
	Cancel(ctx context.Context, id int) error
}

// ProjectAPI is the project access the HTTP handlers need.
type ProjectAPI interface {
	GetAll(ctx context.Context) ([]models.Project, error)
	GetByName(ctx context.Context, name string) (*models.Project, error)
	Create(ctx context.Context, p *models.Project) error
}

// VendorAPI is the vendor access the HTTP handlers need.
type VendorAPI interface {
	GetAll(ctx context.Context) ([]models.Vendor, error)
	Upsert(ctx context.Context, v *models.Vendor) error
}

// SaleAPI is the sale access the HTTP handlers need.
type SaleAPI interface {
	Create(ctx context.Context, s *models.Sale) error
	GetAll(ctx context.Context) ([]models.Sale, error)
	ExistsForProject(ctx context.Context, project string) (bool, error)
}

// Extractor runs AI expense extraction. Implemented by gemini.Client.
type Extractor interface {
	ExtractExpense(ctx context.Context, message string) *gemini.ExpenseExtraction
}

// Notifier pushes alerts about automatic captures. Implemented by
// notify.TelegramNotifier.
type Notifier interface {
	NotifyExpense(ctx context.Context, e *models.Expense) error
}

// Server holds the HTTP handler dependencies.
type Server struct {
	interp   Replier
	expenses ExpenseAPI
	projects ProjectAPI
	vendors  VendorAPI
	sales    SaleAPI
	ai       Extractor
	notifier Notifier
}

// New builds the fiber app with all routes registered.
func New(interp Replier, expenses ExpenseAPI, projects ProjectAPI, vendors VendorAPI, sales SaleAPI, ai Extractor, notifier Notifier) (*Server, *fiber.App) {
	s := &Server{
		interp:   interp,
		expenses: expenses,
		projects: projects,
		vendors:  vendors,
		sales:    sales,
		ai:       ai,
		notifier: notifier,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			logger.Log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled request error")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestLogger)
	app.Use(cors.New())

	app.Post("/webhook/whatsapp", s.handleWhatsApp)
	app.Post("/webhook/sms", s.handleBankSMS)

	api := app.Group("/api")
	api.Get("/expenses", s.listExpenses)
	api.Post("/expenses", s.createExpense)
	api.Patch("/expenses/:id", s.updateExpense)
	api.Delete("/expenses/:id", s.deleteExpense)
	api.Get("/projects", s.listProjects)
	api.Post("/projects", s.createProject)
	api.Get("/vendors", s.listVendors)
	api.Post("/vendors", s.upsertVendor)
	api.Get("/sales", s.listSales)
	api.Post("/sales", s.createSale)
	api.Get("/summary", s.getSummary)
	api.Get("/search", s.searchExpenses)
	api.Get("/parse", s.testParse)
	api.Post("/ai/parse", s.aiParse)

	return s, app
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	logger.Log.Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")
	return err
}
