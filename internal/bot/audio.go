package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// audioMessage buffers one WAV file and uploads it to the chat on Close.
type audioMessage struct {
	bytes.Buffer
	chatID int64
	sender Sender
}

func (a *audioMessage) Close() error {
	audio := tgbotapi.NewAudio(a.chatID, tgbotapi.FileBytes{
		Name:  "hopeconnect.wav",
		Bytes: a.Bytes(),
	})
	audio.Title = "HopeConnect"

	if _, err := a.sender.Send(audio); err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}
	return nil
}

func (b *Bot) audioUpload(chatID int64) func(ctx context.Context) (io.WriteCloser, error) {
	return func(ctx context.Context) (io.WriteCloser, error) {
		if _, err := b.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadVoice)); err != nil {
			b.logger.Debug("Failed to send chat action", zap.Error(err), zap.Int64("chat_id", chatID))
		}
		return &audioMessage{chatID: chatID, sender: b.sender}, nil
	}
}
