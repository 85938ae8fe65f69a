package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xaenox/hopeconnect/internal/chat"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/onboarding"
	"github.com/xaenox/hopeconnect/internal/profile"
	"github.com/xaenox/hopeconnect/internal/speech"
	"github.com/xaenox/hopeconnect/internal/storage"
	"go.uber.org/zap"
)

var errNoLocation = errors.New("no location shared")

// companion is the state of one Telegram chat. Each chat is one device with
// its own profile record.
type companion struct {
	chatID  int64
	store   *profile.Store
	speaker *speech.Bridge
	logger  *zap.Logger

	mu               sync.Mutex
	session          *chat.Session
	flow             *onboarding.Flow
	pendingMode      gateway.Mode
	awaitingLocation bool
	pendingQuery     string
	location         *models.Coordinates
}

// ChatPrefix is the storage namespace of one chat.
func ChatPrefix(chatID int64) string {
	return fmt.Sprintf("chat/%d/", chatID)
}

func (b *Bot) companion(ctx context.Context, chatID int64) *companion {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.companions[chatID]; ok {
		return c
	}

	logger := b.logger.With(zap.Int64("chat_id", chatID))
	c := &companion{
		chatID:  chatID,
		store:   profile.NewStore(ctx, storage.WithPrefix(b.storage, ChatPrefix(chatID)), logger),
		speaker: speech.NewBridge(b.gateway, &speech.WAVSink{Open: b.audioUpload(chatID)}, logger),
		logger:  logger,
	}
	b.companions[chatID] = c
	return c
}

// chatSession returns the live session, opening one on first use.
func (c *companion) chatSession(ctx context.Context, gw gateway.Gateway) (*chat.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	s, err := chat.New(ctx, chat.Deps{
		Gateway: gw,
		Status:  c.store,
		Speaker: c.speaker,
		Logger:  c.logger,
	}, c.store.Current().Name)
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

func (c *companion) currentSession() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// dropSession retires the live session and waits for its background
// sentiment tasks, which are discarded rather than applied.
func (c *companion) dropSession() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.pendingMode = ""
	c.mu.Unlock()

	if s != nil {
		s.Close()
		s.Wait()
	}
}

// Locate reports the last location shared in this chat.
func (c *companion) Locate(ctx context.Context) (models.Coordinates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.location == nil {
		return models.Coordinates{}, errNoLocation
	}
	return *c.location, nil
}
