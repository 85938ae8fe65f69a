package bot

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/hopeconnect/internal/chat"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/profile"
	"github.com/xaenox/hopeconnect/internal/storage"
	"go.uber.org/zap"
)

const testChat int64 = 42

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeSender) lastMessage() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	return tgbotapi.MessageConfig{}
}

func (f *fakeSender) callbackAnswers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func command(text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: testChat},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func textMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: testChat},
		Text: text,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: testChat},
		},
	}}
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	store  *storage.MemoryStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sender := &fakeSender{}
	store := storage.NewMemoryStorage()
	b := NewWithSender(sender, store, gateway.NewMockGateway(), zap.NewNop())
	t.Cleanup(b.Wait)
	return &harness{bot: b, sender: sender, store: store}
}

func (h *harness) handle(updates ...tgbotapi.Update) {
	for _, u := range updates {
		h.bot.HandleUpdate(context.Background(), u)
	}
}

func (h *harness) profile() models.UserProfile {
	return h.bot.companion(context.Background(), testChat).store.Current()
}

func (h *harness) onboard(t *testing.T) {
	t.Helper()
	h.handle(
		command("/start"),
		textMessage("Alex"),
		callback(cbAge+"25-34"),
		textMessage("Sam"),
		textMessage("555 0100"),
		textMessage("Friend"),
		callback(cbFinish),
	)
	require.True(t, h.profile().IsOnboarded)
}

func TestGatedCommandStartsOnboarding(t *testing.T) {
	h := newHarness(t)

	h.handle(command("/home"))
	assert.Contains(t, h.sender.lastText(), "Welcome to HopeConnect")

	h.handle(command("/emergency"))
	assert.Contains(t, h.sender.lastText(), "Call 988")
	assert.Nil(t, h.sender.lastMessage().ReplyMarkup, "no contact, no notify button")
}

func TestOnboardingThroughTelegram(t *testing.T) {
	h := newHarness(t)

	h.handle(command("/start"), textMessage("Alex"))
	assert.Equal(t, "Which age range are you in?", h.sender.lastText())

	h.handle(callback(cbAge + "200"))
	assert.Contains(t, h.sender.lastText(), "please pick one of the listed age ranges")

	h.handle(
		callback(cbAge+"25-34"),
		textMessage("Sam"),
		textMessage("555 0100"),
		textMessage("Friend"),
		callback(cbPermission+"location"),
		callback(cbFinish),
	)

	texts := h.sender.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, "You're all set.", texts[len(texts)-2])
	assert.True(t, strings.HasPrefix(h.sender.lastText(), "Hi, Alex"))

	got := h.profile()
	assert.True(t, got.IsOnboarded)
	assert.Equal(t, "25-34", got.AgeRange)
	assert.Equal(t, "Sam", got.EmergencyContact.Name)
	assert.True(t, got.Permissions.LocationSharing)

	raw, err := h.store.Get(context.Background(), ChatPrefix(testChat)+profile.RecordKey)
	require.NoError(t, err)
	var persisted models.UserProfile
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, "Alex", persisted.Name)
}

func TestChatTurnAndSentiment(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(textMessage("I'm so stressed"))
	msg := h.sender.lastMessage()
	assert.Contains(t, msg.Text, "I'm so stressed")
	assert.NotNil(t, msg.ReplyMarkup, "replies carry a read aloud button")

	h.bot.Wait()
	assert.Equal(t, models.StatusStruggling, h.profile().CurrentStatus)
}

func TestThinkingToggle(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(command("/thinking"))
	assert.Equal(t, "Thinking Mode On", h.sender.lastText())

	h.handle(textMessage("help me think"))
	assert.True(t, strings.HasPrefix(h.sender.lastText(), "🧠 "))

	h.handle(command("/thinking"))
	assert.Equal(t, chat.ConfirmPrompt, h.sender.lastText())

	h.handle(callback(cbConfirm + "cancel"))
	assert.Equal(t, "Okay, staying in the current mode.", h.sender.lastText())

	h.handle(command("/thinking"), callback(cbConfirm+string(gateway.ModeStandard)))
	assert.Equal(t, "I've switched to Standard mode. How can I help?", h.sender.lastText())
}

func TestMoodCheckIn(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(callback(cbMood + "Good"))
	assert.Equal(t, models.StatusGood, h.profile().CurrentStatus)
	assert.Contains(t, h.sender.lastText(), "Status: Good")
	assert.Contains(t, h.sender.callbackAnswers(), "Checked in: Good")

	h.handle(command("/mood crisis"))
	assert.Equal(t, models.StatusCrisis, h.profile().CurrentStatus)
	assert.Contains(t, strings.Join(h.sender.texts(), "\n"), "Call 988")

	h.handle(command("/mood sleepy"))
	assert.Contains(t, h.sender.lastText(), "Please pick one of")
	assert.Equal(t, models.StatusCrisis, h.profile().CurrentStatus)
}

func TestEmergencyNotify(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(command("/sos"))
	assert.Contains(t, h.sender.lastText(), "Call Sam directly: 555 0100")
	assert.NotNil(t, h.sender.lastMessage().ReplyMarkup)

	h.handle(callback(cbNotify))
	assert.Contains(t, h.sender.callbackAnswers(), "Notified")
}

func TestCounselorsNeedLocation(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(command("/counselors"))
	_, ok := h.sender.lastMessage().ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, ok, "asks for the location")

	h.handle(textMessage(notNowLabel))
	assert.Equal(t, "⚠️ Unable to retrieve your location. Please allow location access.", h.sender.lastText())

	h.handle(command("/counselors grief"), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: testChat},
		Location: &tgbotapi.Location{Latitude: 40.7, Longitude: -74},
	}})
	assert.Contains(t, h.sender.lastText(), `no live results for "grief"`)

	// The shared location is remembered.
	h.handle(command("/counselors"))
	assert.Contains(t, h.sender.lastText(), "Mental health counselors")
}

func TestSpeakUploadsAudio(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(command("/speak"))
	assert.Contains(t, h.sender.lastText(), "nothing to read")

	h.handle(textMessage("hello"), command("/speak"))

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	last := h.sender.sent[len(h.sender.sent)-1]
	audio, ok := last.(tgbotapi.AudioConfig)
	require.True(t, ok, "expected an audio upload, got %T", last)
	file, ok := audio.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "RIFF", string(file.Bytes[:4]))
}

func TestResetStartsOver(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	h.handle(command("/reset"))
	assert.False(t, h.profile().IsOnboarded)
	assert.Contains(t, h.sender.lastText(), "Welcome to HopeConnect")

	_, err := h.store.Get(context.Background(), ChatPrefix(testChat)+profile.RecordKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

type slowSentiment struct {
	*gateway.MockGateway
	release chan struct{}
}

func (g *slowSentiment) ClassifySentiment(ctx context.Context, text string) models.EmotionalStatus {
	<-g.release
	return g.MockGateway.ClassifySentiment(ctx, text)
}

func TestResetDiscardsPendingSentiment(t *testing.T) {
	sender := &fakeSender{}
	store := storage.NewMemoryStorage()
	gw := &slowSentiment{MockGateway: gateway.NewMockGateway(), release: make(chan struct{})}
	b := NewWithSender(sender, store, gw, zap.NewNop())
	h := &harness{bot: b, sender: sender, store: store}
	h.onboard(t)

	h.handle(textMessage("I'm so stressed"))

	reset := make(chan struct{})
	go func() {
		defer close(reset)
		h.handle(command("/reset"))
	}()

	c := h.bot.companion(context.Background(), testChat)
	require.Eventually(t, func() bool { return c.currentSession() == nil }, time.Second, 5*time.Millisecond)
	close(gw.release)
	<-reset
	b.Wait()

	_, err := store.Get(context.Background(), ChatPrefix(testChat)+profile.RecordKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, models.StatusUnknown, h.profile().CurrentStatus)
	assert.Contains(t, h.sender.lastText(), "Welcome to HopeConnect")
}

func TestChatsAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	other := h.bot.companion(context.Background(), testChat+1)
	assert.False(t, other.store.Current().IsOnboarded)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.handle(command("/dance"))
	assert.Equal(t, "Unknown command. Use /help to see available commands.", h.sender.lastText())
}
