package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mediabot/internal/ai"
	"mediabot/internal/session"
)

// handleMedia interprets a photo, voice message or video according to the
// user's mode. It returns false when the media did not fit the mode and the
// user was given guidance instead.
func (b *Bot) handleMedia(ctx context.Context, u Update) bool {
	mode, _ := b.mode(u.UserID)

	if mode == session.ModeGenerating {
		b.reply(ctx, u.ChatID, "⏳ Your video is still being generated. I'll send it here when it's ready.")
		return false
	}

	switch u.Kind {
	case KindPhoto:
		switch mode {
		case session.ModeAnalyzeImage:
			b.analyze(ctx, u, ai.InputImage, ai.PromptDescribeImage)
			return true
		case session.ModeImageToVideoImage, session.ModeImageToVideoPrompt:
			b.videos.AcceptImage(ctx, u.UserID, u.ChatID, u.FileID)
			return true
		case session.ModeEditAwaitingImage, session.ModeEditAwaitingPrompt:
			b.acceptEditImage(ctx, u)
			return true
		case session.ModeTextToVideoPrompt:
			b.reply(ctx, u.ChatID, "✍️ I need a text description of the video. To animate a photo, choose "+BtnImageToVideo+".")
			return false
		}
		b.reply(ctx, u.ChatID, "🖼 To work with a photo, first choose "+BtnAnalyzeImage+", "+BtnEditImage+" or "+BtnImageToVideo+" in the menu.")

	case KindVoice:
		switch mode {
		case session.ModeTranscribeAudio:
			b.analyze(ctx, u, ai.InputAudio, ai.PromptTranscribeAudio)
			return true
		case session.ModeAnalyzeAudio:
			b.analyze(ctx, u, ai.InputAudio, ai.PromptAnalyzeAudio)
			return true
		}
		b.reply(ctx, u.ChatID, "🎙 To work with audio, first open "+BtnAudio+" in the menu.")

	case KindVideo:
		if mode == session.ModeAnalyzeVideo {
			b.analyze(ctx, u, ai.InputVideo, ai.PromptDescribeVideo)
			return true
		}
		b.reply(ctx, u.ChatID, "🎞 To analyze a video, first choose "+BtnAnalyzeVideo+" in the "+BtnVideo+" menu.")
	}

	return false
}

// analyze sends the media to the text backend. A caption replaces the
// default instruction.
func (b *Bot) analyze(ctx context.Context, u Update, kind ai.InputKind, defaultPrompt string) {
	url, err := b.messenger.ResolveFileURL(ctx, u.FileID)
	if err != nil {
		b.logger.Warn("Failed to resolve file", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.reply(ctx, u.ChatID, "❌ I couldn't download that file. Please send it again.")
		return
	}

	prompt := defaultPrompt
	if caption := strings.TrimSpace(u.Text); caption != "" {
		prompt = caption
	}

	b.reply(ctx, u.ChatID, "⏳ Analyzing...")
	answer, err := b.text.Analyze(ctx, ai.Input{Kind: kind, URL: url}, prompt)
	if err != nil {
		b.logger.Warn("Analysis failed",
			zap.Int64("user_id", u.UserID),
			zap.String("input", kind.String()),
			zap.Error(err),
		)
		b.replyError(ctx, u.ChatID, err)
		return
	}
	b.replyLong(ctx, u.ChatID, answer)
}

// acceptEditImage stores the photo to edit. A caption is applied right away.
func (b *Bot) acceptEditImage(ctx context.Context, u Update) {
	url, err := b.messenger.ResolveFileURL(ctx, u.FileID)
	if err != nil {
		b.logger.Warn("Failed to resolve image", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.reply(ctx, u.ChatID, "❌ I couldn't read that image. Please send it again.")
		return
	}

	pending := &session.Pending{Workflow: session.WorkflowImageEdit, SourceURL: url}
	b.sessions.Set(u.UserID, session.ModeEditAwaitingPrompt, pending)

	if caption := strings.TrimSpace(u.Text); caption != "" {
		b.editImage(ctx, u, pending, caption)
		return
	}
	b.replyWithKeyboard(ctx, u.ChatID, "✅ Got it! Now describe what should change.\n\nExample: make it look like a watercolor painting", FlowKeyboard())
}
