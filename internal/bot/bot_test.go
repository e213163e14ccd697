package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mediabot/internal/ai"
	aistubs "mediabot/internal/ai/stubs"
	"mediabot/internal/jobs"
	jobstubs "mediabot/internal/jobs/stubs"
	"mediabot/internal/media"
	msgstubs "mediabot/internal/messaging/stubs"
	"mediabot/internal/metrics"
	"mediabot/internal/session"
	"mediabot/internal/storage/stubs"
	"mediabot/internal/workflow"
)

// Note: the Telegram API is left nil; outgoing messages are captured by the
// messaging recorder instead.

type testBot struct {
	*Bot
	msgs     *msgstubs.Recorder
	db       *stubs.MockDB
	sessions *session.MemoryStore
	text     *aistubs.Text
	images   *aistubs.Images
}

func newTestBot(t *testing.T, allowed ...int64) *testBot {
	t.Helper()

	msgs := msgstubs.NewRecorder()
	db := stubs.NewMockDB()
	sessions := session.NewMemoryStore()
	text := &aistubs.Text{Reply: "hello from the model"}
	images := &aistubs.Images{Image: []byte("png-bytes")}

	poller := jobs.NewPoller(jobstubs.NewBackend("stub", jobstubs.Succeeding(0, "https://example.com/v.mp4")...),
		3, 0, metrics.NewNop(), zap.NewNop())
	videos := workflow.New(workflow.Config{
		Workers:        1,
		QueueSize:      4,
		ResultKeyboard: MainKeyboard(),
		FlowKeyboard:   FlowKeyboard(),
	}, msgs, sessions, poller, media.NewFetcher(time.Second), metrics.NewNop(), zap.NewNop())

	b := NewBot(Deps{
		Messenger: msgs,
		DB:        db,
		Sessions:  sessions,
		Text:      text,
		Images:    images,
		Videos:    videos,
		Providers: Providers{Text: "gemini", Image: "gemini", Video: "stub"},
	}, allowed, zap.NewNop())

	return &testBot{Bot: b, msgs: msgs, db: db, sessions: sessions, text: text, images: images}
}

func textUpdate(userID int64, text string) Update {
	return Update{Kind: KindText, UserID: userID, ChatID: userID, FirstName: "Alice", Username: "alice", Text: text}
}

func mediaUpdate(userID int64, kind UpdateKind, fileID, caption string) Update {
	return Update{Kind: kind, UserID: userID, ChatID: userID, FileID: fileID, Text: caption}
}

func (tb *testBot) mode(userID int64) session.Mode {
	sess, ok := tb.sessions.Get(userID)
	if !ok {
		return ""
	}
	return sess.Mode
}

func TestRouter_CommandBeatsMode(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	require.Equal(t, session.ModeChat, tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, "/help"))

	assert.Equal(t, session.Mode(""), tb.mode(1))
	assert.Empty(t, tb.text.Calls(), "a command must not reach the chat backend")
	assert.True(t, tb.msgs.Contains("What I can do"))
}

func TestRouter_CommandWithBotSuffix(t *testing.T) {
	tb := newTestBot(t)
	tb.HandleUpdate(context.Background(), textUpdate(1, "/ping@media_bot"))

	assert.True(t, tb.msgs.Contains("Pong"))
	edit, ok := tb.msgs.Last("edit")
	require.True(t, ok)
	assert.Contains(t, edit.Text, "ms)")
}

func TestRouter_ButtonBeatsMode(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.sessions.Set(1, session.ModeImageToVideoPrompt, &session.Pending{
		Workflow:  session.WorkflowImageToVideo,
		SourceURL: "https://files/photo.jpg",
	})

	tb.HandleUpdate(ctx, textUpdate(1, BtnGemini))
	assert.Equal(t, session.Mode(""), tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	assert.Equal(t, session.ModeChat, tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, BtnTranscribe))
	assert.Equal(t, session.ModeTranscribeAudio, tb.mode(1))
	assert.Equal(t, 0, tb.Bot.videos.Pending(), "a button label must never become a prompt")
}

func TestRouter_StartDropsPendingImage(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.msgs.FileURLs["photo-1"] = "https://files/photo.jpg"
	tb.HandleUpdate(ctx, textUpdate(1, BtnImageToVideo))
	tb.HandleUpdate(ctx, mediaUpdate(1, KindPhoto, "photo-1", ""))
	require.Equal(t, session.ModeImageToVideoPrompt, tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, "/start"))

	_, ok := tb.sessions.Get(1)
	assert.False(t, ok, "/start must drop the pending image")

	user, err := tb.db.GetUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Alice", user.FirstName)

	// Text after /start is no longer taken as a video prompt.
	tb.HandleUpdate(ctx, textUpdate(1, "a dancing cat"))
	assert.Equal(t, 0, tb.Bot.videos.Pending())
}

func TestRouter_UsersAreIsolated(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	tb.HandleUpdate(ctx, textUpdate(2, "hello"))

	assert.Empty(t, tb.text.Calls(), "idle user must get the menu, not the chat")
	assert.Equal(t, session.ModeChat, tb.mode(1))
	assert.Equal(t, session.Mode(""), tb.mode(2))

	tb.HandleUpdate(ctx, textUpdate(1, "hello"))
	require.Len(t, tb.text.Calls(), 1)
}

func TestChat_RepliesAndSavesMessage(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	tb.HandleUpdate(ctx, textUpdate(1, "what is go?"))

	calls := tb.text.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ai.InputText, calls[0].Input.Kind)
	assert.Equal(t, "what is go?", calls[0].Input.Text)

	last, ok := tb.msgs.Last("text")
	require.True(t, ok)
	assert.Equal(t, "hello from the model", last.Text)

	messages := tb.db.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "what is go?", messages[0].Text)
	assert.Equal(t, session.ModeChat, tb.mode(1), "chat mode persists")
}

func TestChat_BackendFailure(t *testing.T) {
	tb := newTestBot(t)
	tb.text.Err = errors.New("quota exceeded")
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	tb.HandleUpdate(ctx, textUpdate(1, "hi"))

	assert.True(t, tb.msgs.Contains("❌ Sorry"))
	assert.Empty(t, tb.db.Messages())
}

func TestChat_PersistenceFailureStillReplies(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	tb.db.Err = errors.New("connection refused")
	tb.HandleUpdate(ctx, textUpdate(1, "hi"))

	last, ok := tb.msgs.Last("text")
	require.True(t, ok)
	assert.Equal(t, "hello from the model", last.Text)
}

func TestMedia_GuidanceWhenIdle(t *testing.T) {
	tb := newTestBot(t)
	tb.msgs.FileURLs["photo-1"] = "https://files/photo.jpg"

	tb.HandleUpdate(context.Background(), mediaUpdate(1, KindPhoto, "photo-1", ""))

	assert.Empty(t, tb.text.Calls())
	assert.True(t, tb.msgs.Contains("To work with a photo"))
}

func TestMedia_AnalyzeImageUsesCaption(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.msgs.FileURLs["photo-1"] = "https://files/photo.jpg"

	tb.HandleUpdate(ctx, textUpdate(1, BtnAnalyzeImage))
	tb.HandleUpdate(ctx, mediaUpdate(1, KindPhoto, "photo-1", "how many cats?"))
	tb.HandleUpdate(ctx, mediaUpdate(1, KindPhoto, "photo-1", ""))

	calls := tb.text.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ai.InputImage, calls[0].Input.Kind)
	assert.Equal(t, "https://files/photo.jpg", calls[0].Input.URL)
	assert.Equal(t, "how many cats?", calls[0].Prompt)
	assert.Equal(t, ai.PromptDescribeImage, calls[1].Prompt)
}

func TestMedia_TranscribeVoice(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.msgs.FileURLs["voice-1"] = "https://files/voice.ogg"

	tb.HandleUpdate(ctx, textUpdate(1, BtnTranscribe))
	tb.HandleUpdate(ctx, mediaUpdate(1, KindVoice, "voice-1", ""))

	calls := tb.text.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ai.InputAudio, calls[0].Input.Kind)
	assert.Equal(t, ai.PromptTranscribeAudio, calls[0].Prompt)
}

func TestMedia_VideoInWrongModeGetsGuidance(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.msgs.FileURLs["video-1"] = "https://files/clip.mp4"

	tb.HandleUpdate(ctx, textUpdate(1, BtnTranscribe))
	tb.HandleUpdate(ctx, mediaUpdate(1, KindVideo, "video-1", ""))

	assert.Empty(t, tb.text.Calls())
	assert.Equal(t, session.ModeTranscribeAudio, tb.mode(1))
	assert.True(t, tb.msgs.Contains("To analyze a video"))
}

func TestProfile(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, "/profile"))
	assert.True(t, tb.msgs.Contains("not registered"))

	tb.HandleUpdate(ctx, textUpdate(1, "/start"))
	tb.msgs.Reset()
	tb.HandleUpdate(ctx, textUpdate(1, BtnProfile))
	assert.True(t, tb.msgs.Contains("Alice"))
	assert.True(t, tb.msgs.Contains("@alice"))

	tb.db.Err = errors.New("timeout")
	tb.HandleUpdate(ctx, textUpdate(1, "/profile"))
	assert.True(t, tb.msgs.Contains("Failed to load your profile"))
}

func TestStatus(t *testing.T) {
	tb := newTestBot(t)
	tb.HandleUpdate(context.Background(), textUpdate(1, "/status"))

	last, ok := tb.msgs.Last("text")
	require.True(t, ok)
	assert.Contains(t, last.Text, "Uptime")
	assert.Contains(t, last.Text, "Video AI: stub")
}

func TestUnknownCommandKeepsSession(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	tb.HandleUpdate(ctx, textUpdate(1, "/frobnicate"))

	assert.Equal(t, session.ModeChat, tb.mode(1))
	assert.True(t, tb.msgs.Contains("Unknown command"))
}

func TestUnauthorizedUser(t *testing.T) {
	tb := newTestBot(t, 1)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(2, BtnChat))

	assert.Equal(t, session.Mode(""), tb.mode(2))
	assert.True(t, tb.msgs.Contains("not authorized"))

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	assert.Equal(t, session.ModeChat, tb.mode(1))
}

func TestImagine(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, "/imagine a lighthouse at dusk"))
	photo, ok := tb.msgs.Last("photo")
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), photo.Media.Data)
	assert.Equal(t, "a lighthouse at dusk", tb.images.Prompt)

	tb.HandleUpdate(ctx, textUpdate(1, "/imagine"))
	assert.Equal(t, session.ModeImagePrompt, tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, "a castle"))
	assert.Equal(t, "a castle", tb.images.Prompt)
	assert.Len(t, tb.msgs.OfKind("photo"), 2)
}

func TestEditImageFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.msgs.FileURLs["photo-1"] = "https://files/photo.jpg"

	tb.HandleUpdate(ctx, textUpdate(1, BtnEditImage))
	require.Equal(t, session.ModeEditAwaitingImage, tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, "make it blue"))
	assert.Equal(t, session.ModeEditAwaitingImage, tb.mode(1), "text without a photo must not advance")

	tb.HandleUpdate(ctx, mediaUpdate(1, KindPhoto, "photo-1", ""))
	require.Equal(t, session.ModeEditAwaitingPrompt, tb.mode(1))

	tb.HandleUpdate(ctx, textUpdate(1, "make it blue"))
	assert.Equal(t, "https://files/photo.jpg", tb.images.Source)
	assert.Equal(t, "make it blue", tb.images.Prompt)
	_, ok := tb.msgs.Last("photo")
	assert.True(t, ok)
}

func TestImageToVideoThroughRouter(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.msgs.FileURLs["photo-1"] = "https://files/photo.jpg"

	tb.HandleUpdate(ctx, textUpdate(1, BtnImageToVideo))
	tb.HandleUpdate(ctx, mediaUpdate(1, KindVoice, "voice-1", ""))
	assert.Equal(t, session.ModeImageToVideoImage, tb.mode(1))

	tb.HandleUpdate(ctx, mediaUpdate(1, KindPhoto, "photo-1", ""))
	sess, ok := tb.sessions.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.ModeImageToVideoPrompt, sess.Mode)
	assert.Equal(t, "https://files/photo.jpg", sess.Pending.SourceURL)

	tb.HandleUpdate(ctx, textUpdate(1, "the waves start moving"))
	assert.Equal(t, session.ModeGenerating, tb.mode(1))
	assert.Equal(t, 1, tb.Bot.videos.Pending())

	tb.HandleUpdate(ctx, textUpdate(1, "hello?"))
	assert.True(t, tb.msgs.Contains("still being generated"))
	assert.Equal(t, 1, tb.Bot.videos.Pending())
}

func TestRetryCallbackWithoutFailedJob(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(context.Background(), Update{
		Kind:         KindCallback,
		UserID:       1,
		ChatID:       1,
		CallbackID:   "cb-1",
		CallbackData: workflow.RetryCallback,
	})

	assert.Len(t, tb.msgs.OfKind("callback"), 1)
	assert.True(t, tb.msgs.Contains("Nothing to retry"))
}

type panickingText struct{}

func (panickingText) Analyze(ctx context.Context, in ai.Input, prompt string) (string, error) {
	panic("boom")
}

func TestHandleUpdate_RecoversFromPanic(t *testing.T) {
	tb := newTestBot(t)
	tb.Bot.text = panickingText{}
	ctx := context.Background()

	tb.HandleUpdate(ctx, textUpdate(1, BtnChat))
	tb.HandleUpdate(ctx, textUpdate(1, "hi"))

	assert.True(t, tb.msgs.Contains("An error occurred"))

	// The user lock was released.
	tb.HandleUpdate(ctx, textUpdate(1, "/cancel"))
	assert.True(t, tb.msgs.Contains("Cancelled"))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args string
		ok   bool
	}{
		{"/start", "start", "", true},
		{"/imagine a red car", "imagine", "a red car", true},
		{"/Help@media_bot", "help", "", true},
		{"/imagine@media_bot  sunset ", "imagine", "sunset", true},
		{"hello", "", "", false},
		{"/", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := parseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestFromTelegram(t *testing.T) {
	from := &tgbotapi.User{ID: 7, UserName: "bob", FirstName: "Bob"}
	chat := &tgbotapi.Chat{ID: 70}

	t.Run("photo uses largest size and caption", func(t *testing.T) {
		u, ok := FromTelegram(tgbotapi.Update{Message: &tgbotapi.Message{
			From:    from,
			Chat:    chat,
			Caption: "what is this?",
			Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		}})
		require.True(t, ok)
		assert.Equal(t, KindPhoto, u.Kind)
		assert.Equal(t, "large", u.FileID)
		assert.Equal(t, "what is this?", u.Text)
		assert.Equal(t, int64(70), u.ChatID)
	})

	t.Run("audio file counts as voice", func(t *testing.T) {
		u, ok := FromTelegram(tgbotapi.Update{Message: &tgbotapi.Message{
			From:  from,
			Chat:  chat,
			Audio: &tgbotapi.Audio{FileID: "song"},
		}})
		require.True(t, ok)
		assert.Equal(t, KindVoice, u.Kind)
		assert.Equal(t, "song", u.FileID)
	})

	t.Run("callback takes chat from message", func(t *testing.T) {
		u, ok := FromTelegram(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    from,
			Data:    workflow.RetryCallback,
			Message: &tgbotapi.Message{MessageID: 5, Chat: chat},
		}})
		require.True(t, ok)
		assert.Equal(t, KindCallback, u.Kind)
		assert.Equal(t, int64(70), u.ChatID)
		assert.Equal(t, workflow.RetryCallback, u.CallbackData)
	})

	t.Run("sticker is other", func(t *testing.T) {
		u, ok := FromTelegram(tgbotapi.Update{Message: &tgbotapi.Message{
			From:    from,
			Chat:    chat,
			Sticker: &tgbotapi.Sticker{FileID: "st"},
		}})
		require.True(t, ok)
		assert.Equal(t, KindOther, u.Kind)
	})

	t.Run("channel post is skipped", func(t *testing.T) {
		_, ok := FromTelegram(tgbotapi.Update{ChannelPost: &tgbotapi.Message{Chat: chat, Text: "news"}})
		assert.False(t, ok)
	})
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, chunks)

	long := strings.Repeat("ж", 25)
	chunks = splitMessage(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("ж", 5), chunks[2])
}

func TestHTTPServer_Routes(t *testing.T) {
	tb := newTestBot(t)
	handler := NewHTTPServer(tb.Bot, true).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "webhook")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram-webhook", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"update_id":1,"message":{"message_id":3,"date":1700000000,` +
		`"from":{"id":9,"is_bot":false,"first_name":"Eve"},"chat":{"id":9,"type":"private"},"text":"/help"}}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram-webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return tb.msgs.Contains("What I can do")
	}, time.Second, 10*time.Millisecond)
}
