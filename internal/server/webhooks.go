package server

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"gitlab.com/kabirsadiq/buildtrack/internal/banksms"
	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// maxTwiMLReply keeps replies inside a single WhatsApp message.
const maxTwiMLReply = 1500

const whatsAppApology = "Sorry, something went wrong. Please try again."

// twiml is the Twilio response envelope.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// handleWhatsApp processes a Twilio WhatsApp webhook. Twilio retries
// non-200 responses, so every path answers 200 with TwiML.
func (s *Server) handleWhatsApp(c *fiber.Ctx) error {
	from := c.FormValue("From")
	body := c.FormValue("Body")
	profileName := c.FormValue("ProfileName")

	reply := whatsAppApology
	if body != "" {
		phone := strings.TrimPrefix(from, "whatsapp:")
		name := profileName
		if name == "" {
			name = phone
		}
		reply = s.safeHandle(c, commands.Inbound{
			Key:         "wa:" + phone,
			DisplayName: name,
			Source:      models.SourceWhatsApp,
			Text:        body,
		})
	}

	if len(reply) > maxTwiMLReply {
		reply = reply[:maxTwiMLReply]
	}

	out, err := xml.Marshal(twiml{Message: reply})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to marshal TwiML")
		out = []byte("<Response><Message>" + whatsAppApology + "</Message></Response>")
	}

	c.Set(fiber.HeaderContentType, "text/xml")
	return c.Status(fiber.StatusOK).Send(out)
}

// safeHandle shields the webhook from interpreter panics; Twilio must
// always get its TwiML back.
func (s *Server) safeHandle(c *fiber.Ctx, in commands.Inbound) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().Any("panic", r).Str("key", in.Key).Msg("Interpreter panicked")
			reply = whatsAppApology
		}
	}()
	return s.interp.Handle(c.UserContext(), in)
}

// bankSMSRequest accepts the field spellings used by the common Android
// SMS-forwarder apps.
type bankSMSRequest struct {
	From    string `json:"from"`
	Sender  string `json:"sender"`
	Number  string `json:"number"`
	Message string `json:"message"`
	Text    string `json:"text"`
	Body    string `json:"body"`
}

func (r bankSMSRequest) sender() string {
	for _, v := range []string{r.From, r.Sender, r.Number} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r bankSMSRequest) message() string {
	for _, v := range []string{r.Message, r.Text, r.Body} {
		if v != "" {
			return v
		}
	}
	return ""
}

// handleBankSMS ingests a forwarded bank alert. Unrecognized messages are
// acknowledged and skipped; the forwarder should never retry.
func (s *Server) handleBankSMS(c *fiber.Ctx) error {
	var req bankSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ignored", "reason": "invalid payload",
		})
	}

	capture, err := banksms.Parse(req.sender(), req.message())
	if err != nil {
		logger.Log.Debug().Err(err).Str("sender", req.sender()).Msg("Bank SMS ignored")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ignored", "reason": err.Error(),
		})
	}

	expense := &models.Expense{
		Amount:       capture.Amount,
		Project:      models.ProjectUnknown,
		Vendor:       capture.Vendor,
		Category:     capture.Category,
		Source:       fmt.Sprintf("%s-%s", models.SourceBankSMS, capture.Bank),
		OriginalText: req.message(),
		EnteredBy:    "bank-sms",
	}
	if err := s.expenses.Create(c.UserContext(), expense); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to store bank SMS capture")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "error", "reason": "storage failed",
		})
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyExpense(c.UserContext(), expense); err != nil {
			logger.Log.Warn().Err(err).Msg("Bank capture stored but alert failed")
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "captured",
		"id":     expense.ID,
		"bank":   capture.Bank,
		"amount": capture.Amount,
	})
}
