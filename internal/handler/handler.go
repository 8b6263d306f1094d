package handler

// handler.go
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"receiptgen/config"
	"receiptgen/internal/access"
	"receiptgen/internal/domain"
	"receiptgen/internal/mailer"
	"receiptgen/internal/render"
	"receiptgen/internal/repository"
	"receiptgen/internal/session"
)

const brandCallbackPrefix = "brand:"

// Handler wires the Telegram transport to the receipt workflow
type Handler struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	store    *repository.Store
	gate     *access.Gate
	renderer *render.Renderer
	mailer   *mailer.Mailer
	sessions *session.Manager

	bot *bot.Bot
}

func NewHandler(cfg *config.Config, logger *zap.Logger, db *sql.DB, store *repository.Store) *Handler {
	h := &Handler{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store,
		gate:     access.NewGate(cfg, store, logger),
		renderer: render.NewRenderer(cfg.TemplateDir, logger),
		mailer:   mailer.NewMailer(cfg, logger),
	}
	h.sessions = session.NewManager(cfg, store, h, logger)
	h.sessions.SetTimeoutNotifier(h.notifySessionTimeout)
	return h
}

// Bind attaches the bot instance once it exists. Required before updates
// arrive; timeout notices and channel posts go through it.
func (h *Handler) Bind(b *bot.Bot) {
	h.bot = b
}

// DefaultHandler dispatches every incoming Telegram update
func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		h.handleCallbackQuery(ctx, b, update)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, b, userID, chatID, text)
		return
	}

	// Plain text only matters while a form is open
	if s, ok := h.sessions.Get(userID); ok {
		h.handleFormAnswer(ctx, b, s, chatID, text)
		return
	}

	h.sendMessage(ctx, b, chatID, "Use /generate_receipt to start a receipt, or /setup_email to register your email first.")
}

func (h *Handler) handleCommand(ctx context.Context, b *bot.Bot, userID, chatID int64, text string) {
	parts := strings.Fields(text)
	cmd, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")

	switch cmd {
	case "/start":
		h.handleStart(ctx, b, chatID)
	case "/grant_access":
		h.handleGrantAccess(ctx, b, userID, chatID, parts[1:])
	case "/setup_email":
		h.handleSetupEmail(ctx, b, userID, chatID, parts[1:])
	case "/generate_receipt":
		h.handleGenerateReceipt(ctx, b, userID, chatID)
	case "/subscription":
		h.handleSubscription(ctx, b, userID, chatID, parts[1:])
	default:
		h.sendMessage(ctx, b, chatID, "Unknown command.")
	}
}

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, chatID int64) {
	h.sendMessage(ctx, b, chatID,
		"Welcome to Brand Receipts!\n\n"+
			"1. Register your email with /setup_email your@email.com\n"+
			"2. Start a receipt with /generate_receipt")
}

// handleGrantAccess implements the admin-only access grant: exactly one of
// "forever" or a positive day count.
func (h *Handler) handleGrantAccess(ctx context.Context, b *bot.Bot, userID, chatID int64, args []string) {
	if !h.gate.AuthorizeAdmin(userID) {
		h.sendMessage(ctx, b, chatID, "You are not authorized to use this command.")
		return
	}

	if len(args) != 2 {
		h.sendMessage(ctx, b, chatID, "Usage: /grant_access <user_id> forever|<days>")
		return
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || targetID == 0 {
		h.sendMessage(ctx, b, chatID, "Invalid user id.")
		return
	}

	forever := strings.EqualFold(args[1], "forever")
	days := 0
	if !forever {
		if days, err = strconv.Atoi(args[1]); err != nil {
			h.sendMessage(ctx, b, chatID, "You must specify either 'forever' or a 'days' value.")
			return
		}
	}

	grant, err := h.gate.Grant(ctx, targetID, userID, forever, days)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidGrantArguments) {
			h.sendMessage(ctx, b, chatID, "You must specify either 'forever' or a 'days' value.")
			return
		}
		h.logger.Error("Grant failed", zap.Error(err), zap.Int64("target_id", targetID))
		h.sendMessage(ctx, b, chatID, "Failed to grant access, please try again.")
		return
	}

	h.postAdminNotice(ctx, b, h.cfg.NotificationChannelID, fmt.Sprintf(
		"Access granted to user %d.\n"+
			"Thank you for choosing Brand Receipts. You can use the receipt generator by typing /generate_receipt.\n"+
			"Please vouch for us in the reviews channel. To renew your subscription, visit the purchase channel.",
		targetID))
	h.sendMessage(ctx, b, targetID, "You now have access to the receipt generator. Type /generate_receipt to begin.")
	h.sendMessage(ctx, b, chatID, "Access granted. "+grant.Message)
}

func (h *Handler) handleSetupEmail(ctx context.Context, b *bot.Bot, userID, chatID int64, args []string) {
	if len(args) != 1 {
		h.sendMessage(ctx, b, chatID, "Usage: /setup_email your@email.com")
		return
	}

	email := args[0]
	if err := h.gate.RegisterEmail(ctx, userID, email); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail):
			h.sendMessage(ctx, b, chatID, "That does not look like a valid email address.")
		case errors.Is(err, domain.ErrEmailAlreadyRegistered):
			h.sendMessage(ctx, b, chatID, "You have already set up an email. If you need to change it, please contact an admin.")
		default:
			h.logger.Error("Email registration failed", zap.Error(err), zap.Int64("user_id", userID))
			h.sendMessage(ctx, b, chatID, "Failed to save your email, please try again.")
		}
		return
	}

	h.postAdminNotice(ctx, b, h.cfg.VerificationChannelID,
		fmt.Sprintf("Email submitted for verification: %s (User: %d)", email, userID))
	h.sendMessage(ctx, b, chatID, "Start Generating Receipt Now.")
}

func (h *Handler) handleGenerateReceipt(ctx context.Context, b *bot.Bot, userID, chatID int64) {
	if err := h.gate.CheckAccess(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrAccessRequired) {
			h.sendMessage(ctx, b, chatID, "You do not have access to the receipt generator. Ask an admin for access.")
			return
		}
		h.logger.Error("Access check failed", zap.Error(err), zap.Int64("user_id", userID))
		h.sendMessage(ctx, b, chatID, "Something went wrong, please try again.")
		return
	}

	_, err := h.sessions.Start(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrEmailNotRegistered) {
			h.sendMessage(ctx, b, chatID, "You need to set up your email first using /setup_email.")
			return
		}
		h.logger.Error("Session start failed", zap.Error(err), zap.Int64("user_id", userID))
		h.sendMessage(ctx, b, chatID, "Failed to start the receipt generator, please try again.")
		return
	}

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: h.brandKeyboard(),
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        "Please select the brand name:",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		h.logger.Error("Failed to send brand keyboard", zap.Error(err), zap.Int64("user_id", userID))
	}
}

// handleSubscription posts the subscription-expired notice for a user
func (h *Handler) handleSubscription(ctx context.Context, b *bot.Bot, userID, chatID int64, args []string) {
	if !h.gate.AuthorizeAdmin(userID) {
		h.sendMessage(ctx, b, chatID, "You are not authorized to use this command.")
		return
	}

	if len(args) != 1 {
		h.sendMessage(ctx, b, chatID, "Usage: /subscription <user_id>")
		return
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(ctx, b, chatID, "Invalid user id.")
		return
	}

	notice := "Subscription Expired: your subscription has ended, and access to the receipt generator has been removed."
	h.sendMessage(ctx, b, targetID, notice)
	h.postAdminNotice(ctx, b, h.cfg.NotificationChannelID,
		fmt.Sprintf("Subscription expired for user %d.", targetID))
	h.sendMessage(ctx, b, chatID, "Subscription notice sent.")
}

func (h *Handler) handleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	userID := cq.From.ID

	// Always answer the callback so the client stops its spinner
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback query", zap.Error(err))
	}

	if !strings.HasPrefix(cq.Data, brandCallbackPrefix) {
		return
	}
	brand := strings.TrimPrefix(cq.Data, brandCallbackPrefix)

	s, ok := h.sessions.Get(userID)
	if !ok {
		h.sendMessage(ctx, b, userID, "That receipt session has expired. Start again with /generate_receipt.")
		return
	}

	if err := s.SelectBrand(ctx, brand); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownBrand):
			h.sendMessage(ctx, b, userID, "Unknown brand, please pick one of the listed options.")
		case errors.Is(err, domain.ErrInputTimeout):
			h.sendMessage(ctx, b, userID, "That receipt session has expired. Start again with /generate_receipt.")
		case errors.Is(err, domain.ErrInvalidState):
			h.sendMessage(ctx, b, userID, "The brand was already selected for this session.")
		default:
			h.logger.Error("Brand selection failed", zap.Error(err), zap.Int64("user_id", userID))
			h.sendMessage(ctx, b, userID, "Failed to record your selection, please start again with /generate_receipt.")
		}
		return
	}

	h.sendMessage(ctx, b, userID, fmt.Sprintf("Brand name set to: %s", brand))

	if field, ok := s.CurrentField(); ok {
		h.sendMessage(ctx, b, userID, field.Prompt)
	}
}

func (h *Handler) handleFormAnswer(ctx context.Context, b *bot.Bot, s *session.Session, chatID int64, text string) {
	next, done, err := s.Answer(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrFieldTooLong):
			h.sendMessage(ctx, b, chatID, "That answer is too long, please try a shorter one.")
			if field, ok := s.CurrentField(); ok {
				h.sendMessage(ctx, b, chatID, field.Prompt)
			}
		case errors.Is(err, domain.ErrFieldRequired):
			h.sendMessage(ctx, b, chatID, "An answer is required for this question.")
			if field, ok := s.CurrentField(); ok {
				h.sendMessage(ctx, b, chatID, field.Prompt)
			}
		case errors.Is(err, domain.ErrDeliveryFailed):
			h.sendMessage(ctx, b, chatID, "There was an error generating the receipt email. Your answers are saved; run /generate_receipt to try again.")
		case errors.Is(err, domain.ErrInputTimeout):
			h.sendMessage(ctx, b, chatID, "Your receipt session timed out. Start again with /generate_receipt.")
		case errors.Is(err, domain.ErrInvalidState):
			h.sendMessage(ctx, b, chatID, "Please select a brand first.")
		default:
			h.logger.Error("Form answer failed", zap.Error(err), zap.Int64("user_id", s.UserID))
			h.sendMessage(ctx, b, chatID, "Failed to record your answer, please start again with /generate_receipt.")
		}
		return
	}

	if done {
		h.sendMessage(ctx, b, chatID, "Receipt generated successfully!")
		return
	}
	if next != nil {
		h.sendMessage(ctx, b, chatID, next.Prompt)
	}
}

// Finalize is the render-and-dispatch handoff invoked by a session after its
// form is submitted. The record is already persisted before this runs.
func (h *Handler) Finalize(ctx context.Context, userID int64, record domain.ReceiptRecord) error {
	email, ok := h.store.Email(userID)
	if !ok {
		return domain.ErrEmailNotRegistered
	}

	brand := record[domain.FieldBrandName]
	if brand == "" {
		brand = "Unknown Brand"
	}

	html, err := h.renderer.Render(brand, record)
	if err != nil {
		return err
	}

	return h.mailer.SendReceiptEmail(html, email, brand, record[domain.FieldProductName])
}

func (h *Handler) notifySessionTimeout(userID int64, state domain.SessionState) {
	if h.bot == nil {
		return
	}
	h.logger.Info("Notifying user of session timeout",
		zap.Int64("user_id", userID),
		zap.String("state", state.String()))
	h.sendMessage(context.Background(), h.bot, userID,
		"Your receipt session timed out. Start again with /generate_receipt.")
}

func (h *Handler) brandKeyboard() [][]models.InlineKeyboardButton {
	rows := make([][]models.InlineKeyboardButton, 0, len(h.cfg.Brands))
	for _, brand := range h.cfg.Brands {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "⭐" + brand, CallbackData: brandCallbackPrefix + brand},
		})
	}
	return rows
}

// sendMessage is the plain-text reply helper; failures are logged only
func (h *Handler) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// postAdminNotice broadcasts to an administrative channel, fire-and-forget
func (h *Handler) postAdminNotice(ctx context.Context, b *bot.Bot, channelID int64, text string) {
	if channelID == 0 {
		return
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: channelID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to post admin notice",
			zap.Error(err),
			zap.Int64("channel_id", channelID))
	}
}
