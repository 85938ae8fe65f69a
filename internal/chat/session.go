// Package chat holds the companion conversation: the transcript, the current
// mode and the turn pipeline against the AI gateway.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
)

const (
	FallbackReply = "I'm having trouble connecting right now. Please check your internet or try again."
	ConfirmPrompt = "Switching modes will start a new conversation context. Continue?"
)

var ErrAwaitingReply = errors.New("a reply is still pending")

// Confirmer is asked before a mode switch discards the transcript. It blocks
// until the user answers.
type Confirmer func(prompt string) bool

// StatusSink receives sentiment classifications. Implemented by profile.Store.
type StatusSink interface {
	ApplyClassification(ctx context.Context, status models.EmotionalStatus) bool
}

// Speaker reads text aloud. Implemented by speech.Bridge.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

type Deps struct {
	Gateway gateway.Gateway
	Status  StatusSink
	Speaker Speaker
	Logger  *zap.Logger
}

// Session is one live companion conversation.
type Session struct {
	deps   Deps
	logger *zap.Logger

	mu         sync.Mutex
	messages   []models.ChatMessage
	mode       gateway.Mode
	loading    bool
	conv       gateway.Conversation
	generation uint64

	// sentiment results apply in issue order; a late result never
	// overwrites one from a newer turn.
	sentimentMu  sync.Mutex
	sentimentSeq uint64
	appliedSeq   uint64
	closed       bool
	tasks        sync.WaitGroup

	now func() time.Time
}

// New opens a standard conversation and seeds the greeting for name.
func New(ctx context.Context, deps Deps, name string) (*Session, error) {
	conv, err := deps.Gateway.StartConversation(ctx, gateway.ModeStandard)
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}

	s := &Session{
		deps:   deps,
		logger: deps.Logger,
		mode:   gateway.ModeStandard,
		conv:   conv,
		now:    time.Now,
	}
	s.messages = []models.ChatMessage{s.newMessage(models.RoleModel, Greeting(name), false)}

	s.logger.Debug("Chat session started", zap.String("conversation", conv.ID()))
	return s, nil
}

// Greeting is the first message of every fresh session.
func Greeting(name string) string {
	return fmt.Sprintf("Hello %s. I'm here to listen. How are you feeling today?", name)
}

// ModeAnnouncement replaces the transcript after a confirmed mode switch.
func ModeAnnouncement(mode gateway.Mode) string {
	return fmt.Sprintf("I've switched to %s mode. How can I help?", mode.Label())
}

func (s *Session) newMessage(role models.Role, text string, thinking bool) models.ChatMessage {
	return models.ChatMessage{
		ID:         uuid.New().String(),
		Role:       role,
		Text:       text,
		Timestamp:  s.now(),
		IsThinking: thinking,
	}
}

// SendUserTurn submits one user utterance and returns the message appended in
// reply. Whitespace-only input is ignored and returns (nil, nil). A gateway
// failure is not an error: the fixed fallback reply is appended instead. A
// reply that arrives after a mode switch is discarded and (nil, nil) is
// returned.
func (s *Session) SendUserTurn(ctx context.Context, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrAwaitingReply
	}
	s.messages = append(s.messages, s.newMessage(models.RoleUser, text, false))
	s.loading = true
	conv := s.conv
	generation := s.generation
	mode := s.mode
	s.mu.Unlock()

	s.classifyInBackground(ctx, text)

	reply, err := conv.Send(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		s.logger.Info("Discarding reply from retired conversation",
			zap.String("conversation", conv.ID()))
		return nil, nil
	}

	var msg models.ChatMessage
	if err != nil {
		s.logger.Error("Chat turn failed", zap.String("conversation", conv.ID()), zap.Error(err))
		msg = s.newMessage(models.RoleModel, FallbackReply, false)
	} else {
		msg = s.newMessage(models.RoleModel, reply, mode == gateway.ModeDeepThinking)
	}
	s.messages = append(s.messages, msg)
	s.loading = false
	return &msg, nil
}

func (s *Session) classifyInBackground(ctx context.Context, text string) {
	s.sentimentMu.Lock()
	s.sentimentSeq++
	seq := s.sentimentSeq
	s.sentimentMu.Unlock()

	ctx = context.WithoutCancel(ctx)

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()

		status := s.deps.Gateway.ClassifySentiment(ctx, text)
		s.applySentiment(ctx, seq, status)
	}()
}

func (s *Session) applySentiment(ctx context.Context, seq uint64, status models.EmotionalStatus) {
	s.sentimentMu.Lock()
	defer s.sentimentMu.Unlock()

	if s.closed {
		s.logger.Debug("Dropping sentiment of closed session", zap.String("status", string(status)))
		return
	}
	if seq <= s.appliedSeq {
		s.logger.Debug("Dropping stale sentiment", zap.Uint64("seq", seq), zap.String("status", string(status)))
		return
	}
	if s.deps.Status.ApplyClassification(ctx, status) {
		s.appliedSeq = seq
	}
}

// NeedsConfirmation reports whether a mode switch would discard anything
// beyond the greeting.
func (s *Session) NeedsConfirmation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) > 1
}

// SwitchMode moves the session to mode. When the transcript holds more than
// the greeting confirm is asked first; a decline changes nothing. It reports
// whether the mode changed. A switch that needed no confirmation is abandoned
// when a turn lands while the new handle is opening.
func (s *Session) SwitchMode(ctx context.Context, mode gateway.Mode, confirm Confirmer) (bool, error) {
	s.mu.Lock()
	if mode == s.mode {
		s.mu.Unlock()
		return false, nil
	}
	needsConfirm := len(s.messages) > 1
	s.mu.Unlock()

	if needsConfirm && (confirm == nil || !confirm(ConfirmPrompt)) {
		return false, nil
	}

	conv, err := s.deps.Gateway.StartConversation(ctx, mode)
	if err != nil {
		return false, fmt.Errorf("failed to start conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A turn that started while the handle was opening makes a silent
	// switch unsafe; the caller has to ask again.
	if mode == s.mode || (!needsConfirm && len(s.messages) > 1) {
		s.logger.Info("Mode switch abandoned, conversation changed meanwhile",
			zap.String("mode", string(mode)),
			zap.String("conversation", conv.ID()))
		return false, nil
	}

	old := s.conv
	s.conv = conv
	s.mode = mode
	s.generation++
	s.loading = false
	if needsConfirm {
		s.messages = []models.ChatMessage{s.newMessage(models.RoleModel, ModeAnnouncement(mode), false)}
	}

	s.logger.Info("Chat mode switched",
		zap.String("mode", string(mode)),
		zap.String("old_conversation", old.ID()),
		zap.String("conversation", conv.ID()))
	return true, nil
}

// ReadAloud speaks text without touching the session state.
func (s *Session) ReadAloud(ctx context.Context, text string) {
	if s.deps.Speaker == nil {
		return
	}
	s.deps.Speaker.Speak(ctx, text)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Mode() gateway.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Loading is true while a reply is pending.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Close retires the session: sentiment results still in flight are dropped
// instead of written to the profile. It does not wait for them; see Wait.
func (s *Session) Close() {
	s.sentimentMu.Lock()
	defer s.sentimentMu.Unlock()
	s.closed = true
}

// Wait blocks until every background sentiment task has finished.
func (s *Session) Wait() {
	s.tasks.Wait()
}
