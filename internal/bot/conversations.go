package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mediabot/internal/ai"
	"mediabot/internal/messaging"
	"mediabot/internal/session"
)

// handleButton reacts to an exact menu label. Every button clears or
// overwrites the session, so a button always wins over the current mode.
func (b *Bot) handleButton(ctx context.Context, u Update) bool {
	switch u.Text {
	case BtnBack, BtnMainMenu:
		b.sessions.Clear(u.UserID)
		b.replyWithKeyboard(ctx, u.ChatID, "🏠 Main menu", MainKeyboard())
	case BtnHelp:
		b.sessions.Clear(u.UserID)
		b.handleHelp(ctx, u)
	case BtnProfile:
		b.sessions.Clear(u.UserID)
		b.handleProfile(ctx, u)

	case BtnGemini:
		b.sessions.Clear(u.UserID)
		b.replyWithKeyboard(ctx, u.ChatID, "🤖 Gemini AI. Chat with the assistant or send a photo to analyze.", geminiKeyboard())
	case BtnImages:
		b.sessions.Clear(u.UserID)
		b.replyWithKeyboard(ctx, u.ChatID, "🎨 Images. Generate a new picture or edit one of yours.", imagesKeyboard())
	case BtnVideo:
		b.sessions.Clear(u.UserID)
		b.replyWithKeyboard(ctx, u.ChatID, "🎬 Video AI. Create a video or ask about one.", videoKeyboard())
	case BtnAudio:
		b.sessions.Clear(u.UserID)
		b.replyWithKeyboard(ctx, u.ChatID, "🎵 Audio AI. Send voice messages or audio files.", audioKeyboard())

	case BtnChat:
		b.enterMode(ctx, u, session.ModeChat, nil, "💬 Chat mode is on. Send me any message.")
	case BtnAnalyzeImage:
		b.enterMode(ctx, u, session.ModeAnalyzeImage, nil,
			"🔍 Send a photo and I'll describe it.\n\nAdd a caption to ask something specific.")
	case BtnGenerateImage:
		b.enterMode(ctx, u, session.ModeImagePrompt, nil, "✨ Describe the image you want me to draw.")
	case BtnEditImage:
		b.enterMode(ctx, u, session.ModeEditAwaitingImage, &session.Pending{Workflow: session.WorkflowImageEdit},
			"🪄 Send the photo you want to edit.")
	case BtnAnalyzeVideo:
		b.enterMode(ctx, u, session.ModeAnalyzeVideo, nil,
			"🎞 Send a video and I'll tell you what happens in it.\n\nAdd a caption to ask something specific.")
	case BtnTranscribe:
		b.enterMode(ctx, u, session.ModeTranscribeAudio, nil, "🎙 Send a voice message or an audio file to transcribe.")
	case BtnAnalyzeAudio:
		b.enterMode(ctx, u, session.ModeAnalyzeAudio, nil, "🎧 Send a voice message or an audio file to analyze.")

	case BtnTextToVideo:
		b.videos.BeginTextToVideo(ctx, u.UserID, u.ChatID)
	case BtnImageToVideo:
		b.videos.BeginImageToVideo(ctx, u.UserID, u.ChatID)

	default:
		return false
	}
	return true
}

func (b *Bot) enterMode(ctx context.Context, u Update, mode session.Mode, pending *session.Pending, prompt string) {
	b.sessions.Set(u.UserID, mode, pending)
	b.replyWithKeyboard(ctx, u.ChatID, prompt, FlowKeyboard())
}

// handleText interprets free text according to the user's mode
func (b *Bot) handleText(ctx context.Context, u Update) {
	mode, pending := b.mode(u.UserID)

	switch mode {
	case session.ModeChat:
		b.handleChat(ctx, u)
	case session.ModeImagePrompt:
		b.generateImage(ctx, u, u.Text)
	case session.ModeEditAwaitingPrompt:
		b.editImage(ctx, u, pending, u.Text)
	case session.ModeTextToVideoPrompt, session.ModeImageToVideoPrompt:
		b.videos.AcceptPrompt(ctx, u.UserID, u.ChatID, u.Text)
	case session.ModeGenerating:
		b.reply(ctx, u.ChatID, "⏳ Your video is still being generated. I'll send it here when it's ready.")
	case session.ModeAnalyzeImage, session.ModeEditAwaitingImage, session.ModeImageToVideoImage:
		b.reply(ctx, u.ChatID, "📸 Please send a photo.")
	case session.ModeAnalyzeVideo:
		b.reply(ctx, u.ChatID, "🎞 Please send a video.")
	case session.ModeTranscribeAudio, session.ModeAnalyzeAudio:
		b.reply(ctx, u.ChatID, "🎙 Please send a voice message or an audio file.")
	default:
		b.replyWithKeyboard(ctx, u.ChatID, "Choose what you'd like to do 👇", MainKeyboard())
	}
}

// handleChat forwards a message to the text backend and records it
func (b *Bot) handleChat(ctx context.Context, u Update) {
	answer, err := b.text.Analyze(ctx, ai.Input{Kind: ai.InputText, Text: u.Text}, ai.PromptChat)
	if err != nil {
		b.logger.Warn("Chat request failed", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.replyError(ctx, u.ChatID, err)
		return
	}

	if err := b.db.SaveMessage(ctx, u.UserID, u.Text); err != nil {
		b.logPersistence(ctx, "save_message", u.UserID, err)
	}
	b.replyLong(ctx, u.ChatID, answer)
}

// generateImage draws prompt and sends the result. The mode is kept so the
// user can ask for another picture.
func (b *Bot) generateImage(ctx context.Context, u Update, prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		b.reply(ctx, u.ChatID, "✨ Please describe the image in words.")
		return
	}

	b.reply(ctx, u.ChatID, "🎨 Drawing, this takes a few seconds...")
	data, err := b.images.Generate(ctx, prompt)
	if err != nil {
		b.logger.Warn("Image generation failed", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.replyError(ctx, u.ChatID, err)
		return
	}

	b.sendPhoto(ctx, u, data, "✨ "+prompt)
}

// editImage applies prompt to the photo collected earlier in the flow
func (b *Bot) editImage(ctx context.Context, u Update, pending *session.Pending, prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		b.reply(ctx, u.ChatID, "🪄 Please describe the change in words.")
		return
	}
	if pending == nil || pending.SourceURL == "" {
		b.sessions.Set(u.UserID, session.ModeEditAwaitingImage, &session.Pending{Workflow: session.WorkflowImageEdit})
		b.reply(ctx, u.ChatID, "📸 Please send the photo you want to edit first.")
		return
	}

	b.reply(ctx, u.ChatID, "🪄 Editing your image...")
	data, err := b.images.Edit(ctx, pending.SourceURL, prompt)
	if err != nil {
		b.logger.Warn("Image edit failed", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.replyError(ctx, u.ChatID, err)
		return
	}

	b.sessions.Set(u.UserID, session.ModeEditAwaitingImage, &session.Pending{Workflow: session.WorkflowImageEdit})
	b.sendPhoto(ctx, u, data, "🪄 "+prompt+"\n\nSend another photo to edit it.")
}

func (b *Bot) sendPhoto(ctx context.Context, u Update, data []byte, caption string) {
	if b.messenger == nil {
		return // For testing
	}
	caption = truncateCaption(caption)
	photo := messaging.Media{Data: data, Name: "image.png"}
	if err := b.messenger.SendPhoto(ctx, u.ChatID, photo, caption, messaging.SendOptions{Keyboard: FlowKeyboard()}); err != nil {
		b.logger.Error("Failed to send photo", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.reply(ctx, u.ChatID, "❌ I made the image but couldn't send it. Please try again.")
	}
}

// maxCaptionChars is Telegram's limit for media captions.
const maxCaptionChars = 1024

func truncateCaption(s string) string {
	r := []rune(s)
	if len(r) <= maxCaptionChars {
		return s
	}
	return string(r[:maxCaptionChars-1]) + "…"
}
