package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
	"github.com/yourusername/ytrelay-go/pkg/logger"
)

// publisherBuffer bounds the per-task event queue. Progress events beyond it
// are dropped; terminal events are never dropped.
const publisherBuffer = 64

// TaskNotifier is told when a background task ends
type TaskNotifier interface {
	NotifyTaskFinished(task *domain.Task)
	NotifyTaskFailed(task *domain.Task, err error)
}

// TaskOrchestrator runs background downloads and reports their progress to
// the subscriber whose client identifier equals the task identifier.
type TaskOrchestrator struct {
	baseCtx   context.Context
	cancel    context.CancelFunc
	extractor domain.MediaExtractor
	checker   domain.ReadinessChecker
	hub       *ProgressHub
	notifier  TaskNotifier
	config    *domain.Config
	logs      *logger.LoggerAdapter
	semaphore chan struct{}
	workerWg  sync.WaitGroup
	active    atomic.Int64
}

// NewTaskOrchestrator creates an orchestrator whose tasks live until ctx is
// cancelled or Shutdown is called. notifier may be nil.
func NewTaskOrchestrator(
	ctx context.Context,
	extractor domain.MediaExtractor,
	checker domain.ReadinessChecker,
	hub *ProgressHub,
	notifier TaskNotifier,
	config *domain.Config,
	logs *logger.LoggerAdapter,
) *TaskOrchestrator {
	baseCtx, cancel := context.WithCancel(ctx)

	limit := config.Download.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}

	return &TaskOrchestrator{
		baseCtx:   baseCtx,
		cancel:    cancel,
		extractor: extractor,
		checker:   checker,
		hub:       hub,
		notifier:  notifier,
		config:    config,
		logs:      logs,
		semaphore: make(chan struct{}, limit),
	}
}

// StartDownload checks engine readiness and schedules a background download.
// It returns as soon as the task is scheduled; every later failure is
// reported only as an Error event on the task's progress stream.
func (o *TaskOrchestrator) StartDownload(ctx context.Context, url string, quality *int) (*domain.Task, error) {
	if err := o.checker.CheckReady(ctx); err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNotReady, err)
	}

	if err := o.baseCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: shutting down", domain.ErrNotReady)
	}

	task := domain.NewTask(url, quality)
	o.logs.Task().Info("task_scheduled",
		zap.String("task_id", task.ID),
		zap.String("url", url),
		zap.Intp("quality", quality))

	// the worker owns task from here on
	snapshot := *task

	o.active.Add(1)
	o.workerWg.Add(1)
	go o.run(task)

	return &snapshot, nil
}

// Active returns the number of tasks that have not reached a terminal state
func (o *TaskOrchestrator) Active() int {
	return int(o.active.Load())
}

// shutdownNotice has no task id, so it is never mistaken for a task's own
// terminal event.
const shutdownNotice = "server shutting down"

// Shutdown cancels running tasks and waits for them to report. When ctx
// expires first, connected clients get a task-less shutdown notice.
func (o *TaskOrchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.logs.Task().Warn("shutdown_deadline_exceeded", zap.Int("active", o.Active()))
		notifyCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		o.hub.Broadcast(notifyCtx, domain.NewErrorEvent("", shutdownNotice))
		return ctx.Err()
	}
}

func (o *TaskOrchestrator) run(task *domain.Task) {
	defer o.workerWg.Done()
	defer o.active.Add(-1)

	pub := newTaskPublisher(o.baseCtx, task.ID, o.hub, o.logs.Task())
	defer pub.close()

	o.awaitSubscriber(task.ID)

	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	case <-o.baseCtx.Done():
		o.fail(task, pub, o.baseCtx.Err())
		return
	}

	if err := task.MarkRunning(); err != nil {
		o.fail(task, pub, err)
		return
	}
	o.logs.Task().Info("task_started", zap.String("task_id", task.ID))

	path, err := o.download(task, pub)
	if err != nil {
		o.fail(task, pub, err)
		return
	}

	filename := filepath.Base(path)
	if err := task.MarkFinished(filename); err != nil {
		o.fail(task, pub, err)
		return
	}

	pub.publish(domain.NewFinishedEvent(task.ID, filename))
	o.logs.Task().Info("task_finished",
		zap.String("task_id", task.ID),
		zap.String("filename", filename),
		zap.Duration("elapsed", task.FinishedAt.Sub(*task.StartedAt)))

	if o.notifier != nil {
		o.notifier.NotifyTaskFinished(task)
	}
}

// awaitSubscriber gives the client a short window to attach its progress
// subscription before the first event is produced.
func (o *TaskOrchestrator) awaitSubscriber(taskID string) {
	delay := o.config.Download.SettleDelay
	if delay <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(o.baseCtx, delay)
	defer cancel()

	if !o.hub.WaitForSubscriber(ctx, taskID) {
		o.logs.Task().Debug("No subscriber attached before settle delay", zap.String("task_id", taskID))
	}
}

// download runs the collaborator and converts a panic into an error
func (o *TaskOrchestrator) download(task *domain.Task, pub *taskPublisher) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("download panicked: %v", r)
		}
	}()

	req := domain.DownloadRequest{
		URL:            task.URL,
		Format:         FormatExpression(task.Quality, o.config.YTDLP.AudioExt, o.config.YTDLP.DefaultFormat),
		OutputTemplate: filepath.Join(o.config.Download.Dir, "%(title)s.%(ext)s"),
	}

	return o.extractor.Download(o.baseCtx, req, func(p domain.RawProgress) {
		if p.Status != "downloading" {
			// yt-dlp reports "finished" per sub-stream before merging
			return
		}
		pub.publish(progressEvent(task.ID, p))
	})
}

func (o *TaskOrchestrator) fail(task *domain.Task, pub *taskPublisher, err error) {
	if markErr := task.MarkFailed(err); markErr != nil {
		o.logs.Task().Warn("Ignoring failure on settled task",
			zap.String("task_id", task.ID),
			zap.Error(markErr))
		return
	}

	pub.publish(domain.NewErrorEvent(task.ID, FriendlyError(err)))
	o.logs.LogError(logger.CategoryTask, "task_failed",
		zap.String("task_id", task.ID),
		zap.String("url", task.URL),
		zap.Error(err))

	if o.notifier != nil {
		o.notifier.NotifyTaskFailed(task, err)
	}
}

// FormatExpression builds the yt-dlp selector for a quality ceiling. An exact
// height match is preferred, then the best rendition not above it.
func FormatExpression(quality *int, audioExt, defaultFormat string) string {
	if quality == nil {
		return defaultFormat
	}
	q := *quality
	return fmt.Sprintf(
		"bestvideo[height=%d]+bestaudio[ext=%s]/best[height=%d]/bestvideo[height<=%d]+bestaudio[ext=%s]/best[height<=%d]",
		q, audioExt, q, q, audioExt, q,
	)
}

func progressEvent(taskID string, p domain.RawProgress) domain.ProgressEvent {
	var percentage float64
	if total := p.Total(); total > 0 {
		percentage = p.DownloadedBytes / total * 100
	}

	var speed float64
	if p.Speed != nil {
		speed = *p.Speed
	}

	var eta int64
	if p.ETA != nil {
		eta = int64(*p.ETA)
	}

	var filename string
	if p.Filename != "" {
		filename = filepath.Base(p.Filename)
	}

	return domain.NewDownloadingEvent(taskID, percentage, speed, eta, filename)
}

// taskPublisher serializes one task's events onto the hub. The download
// goroutine enqueues; a single drain goroutine delivers in FIFO order.
type taskPublisher struct {
	ctx    context.Context
	taskID string
	hub    *ProgressHub
	logger *zap.Logger
	queue  chan domain.ProgressEvent
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func newTaskPublisher(ctx context.Context, taskID string, hub *ProgressHub, logger *zap.Logger) *taskPublisher {
	p := &taskPublisher{
		ctx:    ctx,
		taskID: taskID,
		hub:    hub,
		logger: logger,
		queue:  make(chan domain.ProgressEvent, publisherBuffer),
		done:   make(chan struct{}),
	}
	go p.drain()
	return p
}

// publish enqueues event. Progress events are dropped when the queue is
// full; terminal events wait for room.
func (p *taskPublisher) publish(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if event.IsTerminal() {
		p.queue <- event
		return
	}

	select {
	case p.queue <- event:
	default:
		p.logger.Debug("Progress event dropped, subscriber is slow",
			zap.String("task_id", p.taskID),
			zap.Float64("percentage", event.Percentage))
	}
}

// close stops accepting events and waits until the queue is drained
func (p *taskPublisher) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
}

func (p *taskPublisher) drain() {
	defer close(p.done)

	for event := range p.queue {
		// terminal delivery must survive shutdown of the base context
		ctx := p.ctx
		if event.IsTerminal() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(context.WithoutCancel(p.ctx), 5*time.Second)
			p.hub.SendTo(ctx, p.taskID, event)
			cancel()
			continue
		}
		p.hub.SendTo(ctx, p.taskID, event)
	}
}
