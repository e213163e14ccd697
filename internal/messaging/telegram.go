package messaging

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram implements Messenger over the Bot API client.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegram wraps an authenticated Bot API client
func NewTelegram(api *tgbotapi.BotAPI, logger *zap.Logger) *Telegram {
	return &Telegram{api: api, logger: logger}
}

// SendText sends a text message and returns its message id
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = opts.ParseMode
	msg.ReplyMarkup = replyMarkup(opts)

	sent, err := t.api.Send(msg)
	if err != nil {
		t.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// SendPhoto sends an image with an optional caption
func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, photo Media, caption string, opts SendOptions) error {
	msg := tgbotapi.NewPhoto(chatID, requestFile(photo, "image.png"))
	msg.Caption = caption
	msg.ParseMode = opts.ParseMode
	msg.ReplyMarkup = replyMarkup(opts)

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send photo", zap.Int64("chat_id", chatID), zap.Error(err))
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// SendVideo sends a video with an optional caption
func (t *Telegram) SendVideo(ctx context.Context, chatID int64, video Media, caption string, opts SendOptions) error {
	msg := tgbotapi.NewVideo(chatID, requestFile(video, "video.mp4"))
	msg.Caption = caption
	msg.ParseMode = opts.ParseMode
	msg.SupportsStreaming = true
	msg.ReplyMarkup = replyMarkup(opts)

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send video", zap.Int64("chat_id", chatID), zap.Error(err))
		return fmt.Errorf("failed to send video: %w", err)
	}
	return nil
}

// ResolveFileURL turns a Telegram file id into a downloadable URL
func (t *Telegram) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}
	return url, nil
}

// EditMessage replaces the text of a previously sent message
func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// DeleteMessage removes a previously sent message
func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges an inline button press
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func requestFile(m Media, defaultName string) tgbotapi.RequestFileData {
	if len(m.Data) > 0 {
		name := m.Name
		if name == "" {
			name = defaultName
		}
		return tgbotapi.FileBytes{Name: name, Bytes: m.Data}
	}
	return tgbotapi.FileURL(m.URL)
}

func replyMarkup(opts SendOptions) interface{} {
	switch {
	case len(opts.Inline) > 0:
		return InlineKeyboard(opts.Inline)
	case len(opts.Keyboard) > 0:
		return ReplyKeyboard(opts.Keyboard)
	case opts.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(false)
	default:
		return nil
	}
}

// ReplyKeyboard builds a resized persistent reply keyboard from label rows
func ReplyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			r = append(r, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, r)
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	return kb
}

// InlineKeyboard builds an inline keyboard from button rows
func InlineKeyboard(rows [][]InlineButton) tgbotapi.InlineKeyboardMarkup {
	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		buttons = append(buttons, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(buttons...)
}
