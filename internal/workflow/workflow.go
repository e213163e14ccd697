// Package workflow runs the multi-step video generation flows: collecting
// inputs into the session, then generating in the background and delivering
// the result to the chat.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mediabot/internal/apperr"
	"mediabot/internal/jobs"
	"mediabot/internal/media"
	"mediabot/internal/messaging"
	"mediabot/internal/metrics"
	"mediabot/internal/session"
)

const (
	// CaptionPromptChars is how much of the prompt is echoed in the result caption.
	CaptionPromptChars = 100
	// MaxPromptChars is the longest description the video backends accept.
	MaxPromptChars = 1800

	// RetryCallback is the inline button data that resubmits the last prompt.
	RetryCallback = "video:retry"

	notifyTimeout = 15 * time.Second
)

var (
	// ErrQueueFull is returned when no worker can accept another job.
	ErrQueueFull = errors.New("generation queue is full")
	// ErrStopped is returned for jobs submitted after Stop.
	ErrStopped = errors.New("generation workers are stopped")
)

// Request is one queued generation job.
type Request struct {
	ID         string
	UserID     int64
	ChatID     int64
	Workflow   session.Workflow
	Prompt     string
	SourceURL  string
	EnqueuedAt time.Time
}

// Config tunes the orchestrator.
type Config struct {
	Workers   int
	QueueSize int
	// ResultKeyboard is attached to delivered videos and failure notices.
	ResultKeyboard [][]string
	// FlowKeyboard is attached to prompts sent while a flow collects input.
	FlowKeyboard [][]string
}

// Orchestrator coordinates the text-to-video and image-to-video flows.
type Orchestrator struct {
	cfg       Config
	messenger messaging.Messenger
	sessions  session.Store
	poller    *jobs.Poller
	fetcher   *media.Fetcher
	metrics   *metrics.Recorder
	logger    *zap.Logger
	tracer    trace.Tracer

	queue  chan Request
	wg     sync.WaitGroup
	cancel context.CancelFunc

	// mu guards stopped and sends on queue
	mu      sync.Mutex
	stopped bool
}

// New creates an orchestrator. Call Start to launch its workers.
func New(cfg Config, messenger messaging.Messenger, sessions session.Store, poller *jobs.Poller,
	fetcher *media.Fetcher, rec *metrics.Recorder, logger *zap.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		messenger: messenger,
		sessions:  sessions,
		poller:    poller,
		fetcher:   fetcher,
		metrics:   rec,
		logger:    logger,
		tracer:    otel.Tracer("mediabot/workflow"),
		queue:     make(chan Request, cfg.QueueSize),
	}
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}
	o.logger.Info("Generation workers started",
		zap.Int("workers", o.cfg.Workers),
		zap.Int("queue_size", o.cfg.QueueSize),
		zap.String("backend", o.poller.Backend()),
	)
}

// Stop cancels in-flight jobs and waits for the workers to exit. Jobs still
// queued are failed as interrupted so their users are told and can retry.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for {
		select {
		case req := <-o.queue:
			o.logger.Info("Interrupting queued job", zap.Int64("user_id", req.UserID), zap.String("job_id", req.ID))
			o.fail(context.Background(), req, context.Canceled, req.EnqueuedAt)
		default:
			return
		}
	}
}

// Pending returns the number of queued jobs not yet picked up
func (o *Orchestrator) Pending() int {
	return len(o.queue)
}

// Backend names the video backend in use
func (o *Orchestrator) Backend() string {
	return o.poller.Backend()
}

func (o *Orchestrator) worker(ctx context.Context, id int) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-o.queue:
			o.logger.Debug("Worker picked up job", zap.Int("worker", id), zap.String("job_id", req.ID))
			o.Process(ctx, req)
		}
	}
}

// BeginTextToVideo enters the text-to-video flow
func (o *Orchestrator) BeginTextToVideo(ctx context.Context, userID, chatID int64) {
	o.sessions.Set(userID, session.ModeTextToVideoPrompt, &session.Pending{Workflow: session.WorkflowTextToVideo})
	o.say(ctx, chatID, "✍️ Describe the video you want to create.\n\n"+
		"Example: a red fox running through a snowy forest at sunrise, cinematic")
}

// BeginImageToVideo enters the image-to-video flow
func (o *Orchestrator) BeginImageToVideo(ctx context.Context, userID, chatID int64) {
	o.sessions.Set(userID, session.ModeImageToVideoImage, &session.Pending{Workflow: session.WorkflowImageToVideo})
	o.say(ctx, chatID, "🖼 Send me the image that should come to life.\n\nIt will be used as the first frame of the video.")
}

// AcceptImage stores the source image of an image-to-video flow. If the file
// cannot be resolved the flow stays where it is and the user is asked again.
func (o *Orchestrator) AcceptImage(ctx context.Context, userID, chatID int64, fileID string) {
	url, err := o.messenger.ResolveFileURL(ctx, fileID)
	if err != nil {
		o.logger.Warn("Failed to resolve image", zap.Int64("user_id", userID), zap.Error(err))
		o.say(ctx, chatID, "❌ I couldn't read that image. Please send it again.")
		return
	}

	o.sessions.Set(userID, session.ModeImageToVideoPrompt, &session.Pending{
		Workflow:  session.WorkflowImageToVideo,
		SourceURL: url,
	})
	o.say(ctx, chatID, "✅ Image received!\n\n✍️ Now describe how it should move.\n\n"+
		"Example: the camera slowly zooms in while leaves fall")
}

// AcceptPrompt validates the description and starts generation
func (o *Orchestrator) AcceptPrompt(ctx context.Context, userID, chatID int64, text string) {
	sess, ok := o.sessions.Get(userID)
	if !ok || sess.Pending == nil {
		return
	}

	prompt, err := ValidatePrompt(text)
	if err != nil {
		o.say(ctx, chatID, "✍️ "+apperr.UserMessage(err))
		return
	}

	p := *sess.Pending
	p.Prompt = prompt
	o.start(ctx, userID, chatID, p)
}

// Retry resubmits the last prompt of a failed generation
func (o *Orchestrator) Retry(ctx context.Context, userID, chatID int64) bool {
	sess, ok := o.sessions.Get(userID)
	if !ok || sess.Pending == nil || sess.Pending.Prompt == "" {
		return false
	}
	switch sess.Mode {
	case session.ModeTextToVideoPrompt, session.ModeImageToVideoPrompt:
	default:
		return false
	}
	o.start(ctx, userID, chatID, *sess.Pending)
	return true
}

// ValidatePrompt trims a description and rejects empty or oversized ones
func ValidatePrompt(text string) (string, error) {
	prompt := strings.TrimSpace(text)
	switch {
	case prompt == "":
		return "", &apperr.UserInputError{Message: "Please send a text description of the video."}
	case utf8.RuneCountInString(prompt) > MaxPromptChars:
		return "", &apperr.UserInputError{
			Message: fmt.Sprintf("The description is too long (max %d characters). Please shorten it.", MaxPromptChars),
		}
	}
	return prompt, nil
}

func (o *Orchestrator) start(ctx context.Context, userID, chatID int64, p session.Pending) {
	req := Request{
		ID:         uuid.NewString(),
		UserID:     userID,
		ChatID:     chatID,
		Workflow:   p.Workflow,
		Prompt:     p.Prompt,
		SourceURL:  p.SourceURL,
		EnqueuedAt: time.Now(),
	}
	p.JobID = req.ID
	o.sessions.Set(userID, session.ModeGenerating, &p)

	if err := o.enqueue(req); err != nil {
		p.JobID = ""
		o.sessions.Set(userID, session.RetryMode(&p), &p)
		o.logger.Warn("Generation rejected", zap.Int64("user_id", userID), zap.Error(err))
		if errors.Is(err, ErrStopped) {
			o.say(ctx, chatID, "⚠️ The bot is restarting. Please send the description again in a minute.")
			return
		}
		o.say(ctx, chatID, "😔 Too many videos are being generated right now. Please try again in a few minutes.")
		return
	}

	o.logger.Info("Generation queued",
		zap.Int64("user_id", userID),
		zap.String("job_id", req.ID),
		zap.String("workflow", string(req.Workflow)),
	)
	o.notify(ctx, chatID, "🎬 Generation started! This usually takes a few minutes.\n\n"+
		"I'll send the video here as soon as it's ready.", messaging.SendOptions{Keyboard: o.cfg.ResultKeyboard})
}

func (o *Orchestrator) enqueue(req Request) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	select {
	case o.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Process runs one job to completion: submit, wait, deliver. All outcomes
// end with a chat message, and with a session transition when the user is
// still waiting on this job.
func (o *Orchestrator) Process(ctx context.Context, req Request) {
	started := time.Now()
	logger := o.logger.With(zap.Int64("user_id", req.UserID), zap.String("job_id", req.ID))

	ctx, span := o.tracer.Start(ctx, "workflow.generate", trace.WithAttributes(
		attribute.String("job.id", req.ID),
		attribute.String("job.workflow", string(req.Workflow)),
		attribute.String("job.backend", o.poller.Backend()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in generation job", zap.Any("panic", r))
			o.fail(ctx, req, fmt.Errorf("panic: %v", r), started)
		}
	}()

	o.metrics.GenerationStarted(ctx, o.poller.Backend(), string(req.Workflow))

	statusID := o.notify(ctx, req.ChatID, "⏳ Your request is in the queue...", messaging.SendOptions{})
	resultURL, err := o.generate(ctx, req, statusID)
	if statusID != 0 {
		dctx, cancel := o.detached(ctx)
		if derr := o.messenger.DeleteMessage(dctx, req.ChatID, statusID); derr != nil {
			logger.Debug("Failed to delete status message", zap.Error(derr))
		}
		cancel()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("Generation failed", zap.Error(err))
		o.fail(ctx, req, err, started)
		return
	}

	o.deliver(ctx, req, resultURL, started)
}

func (o *Orchestrator) generate(ctx context.Context, req Request, statusID int) (string, error) {
	if req.SourceURL != "" {
		if err := o.fetcher.Probe(ctx, req.SourceURL); err != nil {
			return "", fmt.Errorf("%w: %v", apperr.ErrSourceUnavailable, err)
		}
	}

	taskID, err := o.poller.Submit(ctx, jobs.SubmitParams{Prompt: req.Prompt, SourceURL: req.SourceURL})
	if err != nil {
		return "", err
	}

	var last jobs.State
	st, err := o.poller.WaitUntilTerminal(ctx, taskID, func(attempt int, st jobs.Status) {
		if st.State == last || statusID == 0 {
			return
		}
		last = st.State
		if text := statusText(st.State); text != "" {
			if err := o.messenger.EditMessage(ctx, req.ChatID, statusID, text); err != nil {
				o.logger.Debug("Failed to update status message", zap.String("job_id", req.ID), zap.Error(err))
			}
		}
	})
	if err != nil {
		return "", err
	}
	return st.ResultURL, nil
}

func statusText(s jobs.State) string {
	switch s {
	case jobs.StateQueued:
		return "⏳ Your request is in the queue..."
	case jobs.StateRunning:
		return "🎬 Generating your video..."
	default:
		return ""
	}
}

func (o *Orchestrator) deliver(ctx context.Context, req Request, resultURL string, started time.Time) {
	ctx, cancel := o.detached(ctx)
	defer cancel()
	logger := o.logger.With(zap.Int64("user_id", req.UserID), zap.String("job_id", req.ID))

	o.transition(req, func() {
		o.sessions.Clear(req.UserID)
	})

	caption := "✅ Your video is ready!\n\n📝 Prompt: " + Truncate(req.Prompt, CaptionPromptChars)
	opts := messaging.SendOptions{Keyboard: o.cfg.ResultKeyboard}

	video := messaging.Media{URL: resultURL}
	if file, err := o.fetcher.Fetch(ctx, resultURL); err != nil {
		logger.Warn("Failed to download result, sending link instead", zap.Error(err))
	} else {
		video = messaging.Media{Data: file.Data, Name: "video.mp4"}
	}

	err := o.messenger.SendVideo(ctx, req.ChatID, video, caption, opts)
	if err != nil && len(video.Data) > 0 {
		logger.Warn("Failed to upload video, retrying by URL", zap.Error(err))
		err = o.messenger.SendVideo(ctx, req.ChatID, messaging.Media{URL: resultURL}, caption, opts)
	}
	if err != nil {
		logger.Error("Failed to send video", zap.Error(err))
		o.notify(ctx, req.ChatID, caption+"\n\n🔗 "+resultURL, opts)
	}

	o.metrics.GenerationFinished(ctx, o.poller.Backend(), string(req.Workflow), metrics.OutcomeSucceeded, time.Since(started))
	logger.Info("Generation delivered", zap.Duration("elapsed", time.Since(started)))
}

func (o *Orchestrator) fail(ctx context.Context, req Request, cause error, started time.Time) {
	ctx, cancel := o.detached(ctx)
	defer cancel()

	outcome := metrics.OutcomeFailed
	if errors.Is(cause, apperr.ErrTimeout) {
		outcome = metrics.OutcomeTimeout
	}
	o.metrics.GenerationFinished(ctx, o.poller.Backend(), string(req.Workflow), outcome, time.Since(started))

	p := &session.Pending{Workflow: req.Workflow, SourceURL: req.SourceURL, Prompt: req.Prompt}
	if errors.Is(cause, apperr.ErrSourceUnavailable) {
		p.SourceURL = ""
	}
	o.transition(req, func() {
		o.sessions.Set(req.UserID, session.RetryMode(p), p)
	})

	text, retry := failureText(req.Workflow, cause, p)
	opts := messaging.SendOptions{Keyboard: o.cfg.ResultKeyboard}
	if retry {
		opts.Inline = [][]messaging.InlineButton{{{Text: "🔁 Try again", Data: RetryCallback}}}
	}
	if _, err := o.messenger.SendText(ctx, req.ChatID, text, opts); err != nil {
		o.logger.Error("Failed to notify user about failed generation",
			zap.Int64("user_id", req.UserID),
			zap.String("job_id", req.ID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

func failureText(wf session.Workflow, cause error, p *session.Pending) (string, bool) {
	switch {
	case errors.Is(cause, apperr.ErrSourceUnavailable):
		return "❌ " + apperr.UserMessage(cause) + ".\n\n📸 Send a new image to continue.", false
	case errors.Is(cause, apperr.ErrTimeout):
		return "⏱ Video generation timed out.\n\n✍️ Send a description again or tap Try again.", p.Prompt != ""
	case errors.Is(cause, context.Canceled):
		return "⚠️ Video generation was interrupted.\n\n✍️ Send a description again or tap Try again.", p.Prompt != ""
	default:
		return "❌ Video generation failed: " + apperr.UserMessage(cause) +
			"\n\n✍️ Send a new description to try again.", p.Prompt != ""
	}
}

// transition applies a terminal session change only while the user is still
// waiting on this job. A user who moved on keeps their new session.
func (o *Orchestrator) transition(req Request, apply func()) bool {
	unlock := o.sessions.Lock(req.UserID)
	defer unlock()

	sess, ok := o.sessions.Get(req.UserID)
	if !ok || sess.Mode != session.ModeGenerating || sess.Pending == nil || sess.Pending.JobID != req.ID {
		o.logger.Debug("Session moved on, leaving it untouched",
			zap.Int64("user_id", req.UserID),
			zap.String("job_id", req.ID),
		)
		return false
	}
	apply()
	return true
}

// say sends a flow prompt with the flow keyboard.
func (o *Orchestrator) say(ctx context.Context, chatID int64, text string) {
	o.notify(ctx, chatID, text, messaging.SendOptions{Keyboard: o.cfg.FlowKeyboard})
}

// notify sends text and logs failures. It returns the message id, or 0.
func (o *Orchestrator) notify(ctx context.Context, chatID int64, text string, opts messaging.SendOptions) int {
	id, err := o.messenger.SendText(ctx, chatID, text, opts)
	if err != nil {
		o.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return id
}

// detached keeps trace values but survives cancellation, so shutdown still
// lets users hear what happened to their job.
func (o *Orchestrator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
