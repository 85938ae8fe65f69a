package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/hopeconnect/internal/chat"
	"github.com/xaenox/hopeconnect/internal/counselors"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/navigation"
	"github.com/xaenox/hopeconnect/internal/onboarding"
	"github.com/xaenox/hopeconnect/internal/storage"
	"go.uber.org/zap"
)

// Sender is the part of the Telegram API the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	storage storage.Storage
	gateway gateway.Gateway
	finder  *counselors.Finder
	logger  *zap.Logger
	timeout int

	mu         sync.Mutex
	companions map[int64]*companion
	handlers   sync.WaitGroup
}

func New(token string, timeout int, storage storage.Storage, gw gateway.Gateway, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := NewWithSender(api, storage, gw, logger)
	b.api = api
	b.timeout = timeout
	return b, nil
}

// SetDebug turns on request logging of the Telegram client.
func (b *Bot) SetDebug(on bool) {
	if b.api != nil {
		b.api.Debug = on
	}
}

// NewWithSender builds a bot that cannot poll for updates; updates are fed
// through HandleUpdate.
func NewWithSender(sender Sender, storage storage.Storage, gw gateway.Gateway, logger *zap.Logger) *Bot {
	return &Bot{
		sender:     sender,
		storage:    storage,
		gateway:    gw,
		finder:     counselors.NewFinder(gw, logger),
		logger:     logger,
		timeout:    60,
		companions: make(map[int64]*companion),
	}
}

// Start polls for updates until ctx is cancelled, then waits for in-flight
// handlers to finish.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot has no Telegram connection")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.Wait()
			b.logger.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.Wait()
				return nil
			}
			b.handlers.Add(1)
			go func() {
				defer b.handlers.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// Wait blocks until every running handler and chat background task is done.
func (b *Bot) Wait() {
	b.handlers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.companions {
		if s := c.currentSession(); s != nil {
			s.Wait()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	c := b.companion(ctx, message.Chat.ID)

	switch {
	case message.IsCommand():
		b.handleCommand(ctx, c, message)
	case message.Location != nil:
		b.handleLocation(ctx, c, message.Location)
	default:
		b.handleText(ctx, c, strings.TrimSpace(message.Text))
	}
}

func (b *Bot) handleCommand(ctx context.Context, c *companion, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(ctx, c)
	case "help":
		b.sendMessage(c.chatID, helpText)
	case "home":
		if b.enter(ctx, c, navigation.RouteDashboard) {
			b.showDashboard(c)
		}
	case "chat":
		if b.enter(ctx, c, navigation.RouteChat) {
			b.handleChat(ctx, c)
		}
	case "thinking":
		if b.enter(ctx, c, navigation.RouteChat) {
			b.handleThinking(ctx, c)
		}
	case "speak":
		if b.enter(ctx, c, navigation.RouteChat) {
			b.handleSpeak(ctx, c)
		}
	case "mood":
		if b.enter(ctx, c, navigation.RouteDashboard) {
			b.handleMood(ctx, c, args)
		}
	case "counselors":
		if b.enter(ctx, c, navigation.RouteCounselors) {
			b.handleCounselors(ctx, c, args)
		}
	case "resources":
		if b.enter(ctx, c, navigation.RouteResources) {
			b.sendMessage(c.chatID, ResourcesText)
		}
	case "emergency", "sos":
		if b.enter(ctx, c, navigation.RouteEmergency) {
			b.showEmergency(c)
		}
	case "reset":
		b.handleReset(ctx, c)
	default:
		b.sendMessage(c.chatID, "Unknown command. Use /help to see available commands.")
	}
}

// enter applies the navigation gate. A user who has not finished onboarding
// is sent there instead.
func (b *Bot) enter(ctx context.Context, c *companion, route navigation.Route) bool {
	resolved := navigation.Resolve(route, c.store.Current())
	if resolved == navigation.RouteOnboarding && route != navigation.RouteOnboarding {
		b.startOnboarding(c)
		return false
	}
	return true
}

func (b *Bot) handleStart(ctx context.Context, c *companion) {
	if !c.store.Current().IsOnboarded {
		b.startOnboarding(c)
		return
	}
	b.showDashboard(c)
}

func (b *Bot) handleText(ctx context.Context, c *companion, text string) {
	c.mu.Lock()
	flow := c.flow
	awaitingLocation := c.awaitingLocation
	c.mu.Unlock()

	if flow != nil {
		b.submitOnboarding(ctx, c, text)
		return
	}

	if awaitingLocation && text == notNowLabel {
		c.mu.Lock()
		c.awaitingLocation = false
		query := c.pendingQuery
		c.mu.Unlock()
		b.searchNearby(ctx, c, query)
		return
	}

	if !b.enter(ctx, c, navigation.RouteChat) {
		return
	}
	b.sendTurn(ctx, c, text)
}

// Onboarding

func (b *Bot) startOnboarding(c *companion) {
	c.mu.Lock()
	if c.flow == nil {
		c.flow = onboarding.NewFlow()
	}
	flow := c.flow
	c.mu.Unlock()

	b.sendOnboardingPrompt(c, flow, "")
}

func (b *Bot) sendOnboardingPrompt(c *companion, flow *onboarding.Flow, prefix string) {
	c.mu.Lock()
	text := flow.Prompt()
	kb := onboardingKeyboard(flow)
	c.mu.Unlock()

	if prefix != "" {
		text = prefix + "\n\n" + text
	}

	msg := tgbotapi.NewMessage(c.chatID, text)
	if len(kb.InlineKeyboard) > 0 {
		msg.ReplyMarkup = kb
	}
	b.send(msg)
}

func (b *Bot) submitOnboarding(ctx context.Context, c *companion, input string) {
	c.mu.Lock()
	flow := c.flow
	if flow == nil {
		c.mu.Unlock()
		return
	}
	err := flow.Submit(input)
	c.mu.Unlock()

	if err != nil {
		b.sendOnboardingPrompt(c, flow, "⚠️ "+err.Error())
		return
	}
	b.sendOnboardingPrompt(c, flow, "")
}

func (b *Bot) finishOnboarding(ctx context.Context, c *companion) error {
	c.mu.Lock()
	flow := c.flow
	if flow == nil {
		c.mu.Unlock()
		return nil
	}
	patch, err := flow.Finish()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if _, err := c.store.Update(ctx, patch); err != nil {
		c.logger.Error("Failed to save profile", zap.Error(err))
	}

	c.mu.Lock()
	c.flow = nil
	c.mu.Unlock()
	c.dropSession()

	c.logger.Info("Onboarding completed")
	b.sendMessage(c.chatID, flow.Prompt())
	b.showDashboard(c)
	return nil
}

// Dashboard and mood

func (b *Bot) showDashboard(c *companion) {
	msg := tgbotapi.NewMessage(c.chatID, DashboardText(c.store.Current()))
	msg.ReplyMarkup = moodKeyboard()
	b.send(msg)
}

func (b *Bot) handleMood(ctx context.Context, c *companion, args string) {
	if args == "" {
		msg := tgbotapi.NewMessage(c.chatID, "How are you feeling right now?")
		msg.ReplyMarkup = moodKeyboard()
		b.send(msg)
		return
	}

	status, ok := models.ParseCheckIn(args)
	if !ok {
		b.sendMessage(c.chatID, "Please pick one of: Great, Good, Okay, Struggling, Crisis.")
		return
	}
	b.checkIn(ctx, c, status)
	b.showDashboard(c)
}

func (b *Bot) checkIn(ctx context.Context, c *companion, status models.EmotionalStatus) {
	if err := c.store.SetStatus(ctx, status); err != nil {
		c.logger.Error("Failed to save check-in", zap.Error(err), zap.String("status", string(status)))
	}
	if status == models.StatusCrisis {
		b.showEmergency(c)
	}
}

// Chat

func (b *Bot) handleChat(ctx context.Context, c *companion) {
	session, err := c.chatSession(ctx, b.gateway)
	if err != nil {
		c.logger.Error("Failed to open chat session", zap.Error(err))
		b.sendErrorMessage(c.chatID, chat.FallbackReply)
		return
	}

	msgs := session.Messages()
	last := msgs[len(msgs)-1]
	text := fmt.Sprintf("Mode: %s\n\n%s", session.Mode().Label(), replyText(last))
	b.sendMessage(c.chatID, text)
}

func (b *Bot) sendTurn(ctx context.Context, c *companion, text string) {
	session, err := c.chatSession(ctx, b.gateway)
	if err != nil {
		c.logger.Error("Failed to open chat session", zap.Error(err))
		b.sendErrorMessage(c.chatID, chat.FallbackReply)
		return
	}

	if _, err := b.sender.Request(tgbotapi.NewChatAction(c.chatID, tgbotapi.ChatTyping)); err != nil {
		c.logger.Debug("Failed to send chat action", zap.Error(err))
	}

	reply, err := session.SendUserTurn(ctx, text)
	if errors.Is(err, chat.ErrAwaitingReply) {
		b.sendMessage(c.chatID, "I'm still thinking about your last message. One moment.")
		return
	}
	if err != nil || reply == nil {
		return
	}

	msg := tgbotapi.NewMessage(c.chatID, replyText(*reply))
	msg.ReplyMarkup = replyKeyboard(*reply)
	b.send(msg)
}

func (b *Bot) handleThinking(ctx context.Context, c *companion) {
	session, err := c.chatSession(ctx, b.gateway)
	if err != nil {
		c.logger.Error("Failed to open chat session", zap.Error(err))
		b.sendErrorMessage(c.chatID, chat.FallbackReply)
		return
	}

	target := gateway.ModeDeepThinking
	if session.Mode() == gateway.ModeDeepThinking {
		target = gateway.ModeStandard
	}

	if !session.NeedsConfirmation() {
		changed, ok := b.switchMode(ctx, c, session, target, nil)
		// Falls through to the prompt only when a message arrived mid-switch.
		if changed || !ok || !session.NeedsConfirmation() {
			return
		}
	}

	c.mu.Lock()
	c.pendingMode = target
	c.mu.Unlock()

	msg := tgbotapi.NewMessage(c.chatID, chat.ConfirmPrompt)
	msg.ReplyMarkup = confirmKeyboard(target)
	b.send(msg)
}

// switchMode reports whether the mode changed and whether the attempt went
// through without error.
func (b *Bot) switchMode(ctx context.Context, c *companion, session *chat.Session, mode gateway.Mode, confirm chat.Confirmer) (changed, ok bool) {
	changed, err := session.SwitchMode(ctx, mode, confirm)
	if err != nil {
		c.logger.Error("Failed to switch mode", zap.Error(err))
		b.sendErrorMessage(c.chatID, chat.FallbackReply)
		return false, false
	}
	if !changed {
		return false, true
	}

	state := "Off"
	if mode == gateway.ModeDeepThinking {
		state = "On"
	}
	text := "Thinking Mode " + state
	if msgs := session.Messages(); len(msgs) == 1 && msgs[0].Text == chat.ModeAnnouncement(mode) {
		text = msgs[0].Text
	}
	b.sendMessage(c.chatID, text)
	return true, true
}

func (b *Bot) handleSpeak(ctx context.Context, c *companion) {
	session := c.currentSession()
	if session == nil {
		b.sendMessage(c.chatID, "There is nothing to read yet. Say hello first.")
		return
	}

	msgs := session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleModel {
			session.ReadAloud(ctx, msgs[i].Text)
			return
		}
	}
}

// Counselors

func (b *Bot) handleCounselors(ctx context.Context, c *companion, query string) {
	c.mu.Lock()
	c.pendingQuery = query
	hasLocation := c.location != nil
	if !hasLocation {
		c.awaitingLocation = true
	}
	c.mu.Unlock()

	if hasLocation {
		b.searchNearby(ctx, c, query)
		return
	}

	msg := tgbotapi.NewMessage(c.chatID,
		"We use your location to find verified mental health professionals in your area. Share your location to search.")
	msg.ReplyMarkup = locationKeyboard()
	b.send(msg)
}

func (b *Bot) handleLocation(ctx context.Context, c *companion, loc *tgbotapi.Location) {
	c.mu.Lock()
	c.location = &models.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}
	awaiting := c.awaitingLocation
	c.awaitingLocation = false
	query := c.pendingQuery
	c.mu.Unlock()

	if !awaiting {
		b.sendMessage(c.chatID, "Thanks, I'll use this location for /counselors.")
		return
	}
	b.searchNearby(ctx, c, query)
}

func (b *Bot) searchNearby(ctx context.Context, c *companion, query string) {
	res, err := b.finder.Nearby(ctx, c, query)
	if err != nil {
		msg := tgbotapi.NewMessage(c.chatID, "⚠️ "+err.Error())
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		b.send(msg)
		return
	}

	msg := tgbotapi.NewMessage(c.chatID, PlacesText(res))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	msg.DisableWebPagePreview = true
	b.send(msg)
}

// Emergency

func (b *Bot) showEmergency(c *companion) {
	profile := c.store.Current()
	msg := tgbotapi.NewMessage(c.chatID, EmergencyText(profile))
	if kb := emergencyKeyboard(profile); kb != nil {
		msg.ReplyMarkup = kb
	}
	b.send(msg)
}

func (b *Bot) notifyContact(c *companion) string {
	contact := c.store.Current().EmergencyContact
	if !contact.Present() {
		return "No trusted contact saved."
	}

	c.logger.Warn("Emergency contact notification requested",
		zap.String("contact", contact.Name),
		zap.String("relationship", contact.Relationship))
	return "Notified"
}

// Reset

func (b *Bot) handleReset(ctx context.Context, c *companion) {
	c.dropSession()
	if err := c.store.Reset(ctx); err != nil {
		c.logger.Error("Failed to reset profile", zap.Error(err))
		b.sendErrorMessage(c.chatID, "Sorry, I couldn't delete your profile. Please try again.")
		return
	}

	c.mu.Lock()
	c.flow = nil
	c.location = nil
	c.awaitingLocation = false
	c.mu.Unlock()

	b.sendMessage(c.chatID, "Your profile has been deleted.")
	b.startOnboarding(c)
}

// Callbacks

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		b.answer(query.ID, "")
		return
	}

	c := b.companion(ctx, query.Message.Chat.ID)
	data := query.Data

	switch {
	case strings.HasPrefix(data, cbMood):
		status, ok := models.ParseCheckIn(strings.TrimPrefix(data, cbMood))
		if !ok {
			b.answer(query.ID, "")
			return
		}
		b.checkIn(ctx, c, status)
		b.answer(query.ID, "Checked in: "+string(status))
		b.editText(c.chatID, query.Message.MessageID, DashboardText(c.store.Current()), moodKeyboard())

	case strings.HasPrefix(data, cbAge):
		b.submitOnboarding(ctx, c, strings.TrimPrefix(data, cbAge))
		b.answer(query.ID, "")

	case strings.HasPrefix(data, cbPermission):
		b.togglePermission(c, query, onboarding.Permission(strings.TrimPrefix(data, cbPermission)))

	case data == cbBack:
		c.mu.Lock()
		flow := c.flow
		if flow != nil {
			flow.Back()
		}
		c.mu.Unlock()
		b.answer(query.ID, "")
		if flow != nil {
			b.sendOnboardingPrompt(c, flow, "")
		}

	case data == cbFinish:
		if err := b.finishOnboarding(ctx, c); err != nil {
			b.answer(query.ID, err.Error())
			return
		}
		b.answer(query.ID, "")

	case strings.HasPrefix(data, cbConfirm):
		b.answer(query.ID, "")
		b.confirmSwitch(ctx, c, gateway.Mode(strings.TrimPrefix(data, cbConfirm)))

	case strings.HasPrefix(data, cbSpeak):
		b.answer(query.ID, "")
		b.speakMessage(ctx, c, strings.TrimPrefix(data, cbSpeak))

	case data == cbNotify:
		b.answer(query.ID, b.notifyContact(c))

	default:
		b.answer(query.ID, "")
	}
}

func (b *Bot) togglePermission(c *companion, query *tgbotapi.CallbackQuery, p onboarding.Permission) {
	c.mu.Lock()
	flow := c.flow
	var err error
	if flow == nil {
		err = onboarding.ErrWrongStep
	} else {
		err = flow.Toggle(p)
	}
	c.mu.Unlock()

	b.answer(query.ID, "")
	if err != nil {
		return
	}

	c.mu.Lock()
	kb := onboardingKeyboard(flow)
	c.mu.Unlock()

	edit := tgbotapi.NewEditMessageReplyMarkup(c.chatID, query.Message.MessageID, *kb)
	if _, err := b.sender.Request(edit); err != nil {
		c.logger.Error("Failed to update keyboard", zap.Error(err))
	}
}

// confirmSwitch completes a mode switch the user confirmed with a button.
func (b *Bot) confirmSwitch(ctx context.Context, c *companion, mode gateway.Mode) {
	c.mu.Lock()
	pending := c.pendingMode
	c.pendingMode = ""
	c.mu.Unlock()

	confirmed := pending != "" && pending == mode
	if !confirmed {
		b.sendMessage(c.chatID, "Okay, staying in the current mode.")
		return
	}

	session := c.currentSession()
	if session == nil {
		return
	}
	b.switchMode(ctx, c, session, mode, func(string) bool { return confirmed })
}

func (b *Bot) speakMessage(ctx context.Context, c *companion, id string) {
	session := c.currentSession()
	if session == nil {
		return
	}
	for _, msg := range session.Messages() {
		if msg.ID == id {
			session.ReadAloud(ctx, msg.Text)
			return
		}
	}
	b.sendMessage(c.chatID, "That message is from an earlier conversation.")
}

// Telegram helpers

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	if _, err := b.sender.Send(edit); err != nil {
		b.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Error("Failed to answer callback", zap.Error(err))
	}
}
