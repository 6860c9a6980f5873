package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/yourusername/tunepack-go/internal/domain"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
	"github.com/yourusername/tunepack-go/pkg/logger"
	"go.uber.org/zap"
)

// Orchestrator drives one batch download at a time through the phases
// validating -> auth check -> resolving -> fetching -> finalizing.
// The guard flag enforces the at-most-one-batch invariant: a second
// Start while a batch is active is rejected synchronously and leaves
// the running batch untouched.
type Orchestrator struct {
	resolver   domain.TrackResolver
	auth       domain.AuthProvider
	collector  *infrastructure.Collector
	newArchive domain.ArchiveFactory
	config     *domain.DownloadConfig
	logger     *zap.Logger

	decider  domain.VipDecider
	notifier *infrastructure.NotificationService
	events   *logger.EventLogger

	onProgress func(domain.Progress)
	onComplete func(*domain.Summary)

	mu           sync.Mutex
	active       bool // the guard flag
	state        *domain.BatchState
	lastProgress domain.Progress
}

// NewOrchestrator creates a new batch download orchestrator
func NewOrchestrator(
	resolver domain.TrackResolver,
	auth domain.AuthProvider,
	collector *infrastructure.Collector,
	newArchive domain.ArchiveFactory,
	config *domain.DownloadConfig,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		resolver:   resolver,
		auth:       auth,
		collector:  collector,
		newArchive: newArchive,
		config:     config,
		logger:     log,
	}
}

// SetDecider installs the three-way VIP decision handler. Without one
// the orchestrator proceeds anonymously and VIP tracks yield previews.
func (o *Orchestrator) SetDecider(decider domain.VipDecider) {
	o.decider = decider
}

// SetNotifier installs the desktop notification service
func (o *Orchestrator) SetNotifier(notifier *infrastructure.NotificationService) {
	o.notifier = notifier
}

// SetEventLogger installs the batch event logger
func (o *Orchestrator) SetEventLogger(events *logger.EventLogger) {
	o.events = events
}

// SetProgressCallback sets the callback fired after every item
func (o *Orchestrator) SetProgressCallback(fn func(domain.Progress)) {
	o.onProgress = fn
}

// SetCompleteCallback sets the callback fired with the terminal summary
func (o *Orchestrator) SetCompleteCallback(fn func(*domain.Summary)) {
	o.onComplete = fn
}

// BatchStatus is a point-in-time view of the orchestrator
type BatchStatus struct {
	Active   bool              `json:"active"`
	BatchID  string            `json:"batch_id,omitempty"`
	Phase    domain.BatchPhase `json:"phase"`
	Progress domain.Progress   `json:"progress"`
}

// Status returns the current batch state, if any
func (o *Orchestrator) Status() BatchStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.state == nil {
		return BatchStatus{Phase: domain.PhaseIdle}
	}
	return BatchStatus{
		Active:   true,
		BatchID:  o.state.ID,
		Phase:    o.state.Phase,
		Progress: o.lastProgress,
	}
}

// Start begins a batch download for the given selection. Precondition
// failures (empty selection, batch already active, archive capability
// unavailable) are returned synchronously with no side effects; the
// batch itself runs asynchronously and reports through the progress
// and completion callbacks.
func (o *Orchestrator) Start(ctx context.Context, selection *domain.TrackSelection, playlistName string) error {
	if selection == nil || selection.Len() == 0 {
		return domain.ErrEmptySelection
	}
	if o.newArchive == nil {
		return domain.ErrArchiverUnavailable
	}

	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return domain.ErrBatchInProgress
	}
	state := domain.NewBatchState(selection, playlistName)
	o.active = true
	o.state = state
	o.lastProgress = domain.Progress{}
	o.mu.Unlock()

	o.logEvent("batch_started",
		zap.String("batch_id", state.ID),
		zap.String("playlist", playlistName),
		zap.Int("selected", selection.Len()))

	go o.run(ctx, state)
	return nil
}

// run executes one batch to its terminal state. The guard flag is
// released exactly once on every path.
func (o *Orchestrator) run(ctx context.Context, state *domain.BatchState) {
	token, authenticated, proceed := o.authDisambiguation(ctx, state)
	if !proceed {
		return
	}

	if !o.resolve(ctx, state, token, authenticated) {
		return
	}

	o.setPhase(state, domain.PhaseFetching)
	archive := o.newArchive()
	succeeded := o.collector.Run(ctx, state, archive, o.emitProgress)

	o.finalize(state, archive, succeeded)
}

// authDisambiguation handles the VIP decision point. It returns the
// session token to resolve with and whether the batch should proceed;
// on suspension or cancellation it has already released the guard and
// reported the outcome.
func (o *Orchestrator) authDisambiguation(ctx context.Context, state *domain.BatchState) (token string, authenticated, proceed bool) {
	vipTracks := state.Selection.VIPTracks()
	if len(vipTracks) == 0 {
		return "", false, true
	}

	o.setPhase(state, domain.PhaseAuthCheck)

	status, err := o.auth.LoginStatus(ctx)
	if err != nil {
		// status check failure degrades to anonymous resolution
		o.logger.Warn("Login status check failed, proceeding anonymously", zap.Error(err))
		return "", false, true
	}
	if status.Authenticated {
		return status.SessionToken, true, true
	}

	decision := domain.DecisionProceed
	if o.decider != nil {
		decision, err = o.decider.DecideVIP(ctx, vipTracks)
		if err != nil {
			o.logger.Warn("VIP decision failed, cancelling batch", zap.Error(err))
			decision = domain.DecisionCancel
		}
	}

	switch decision {
	case domain.DecisionCancel:
		o.abort(state, "cancelled by user")
		return "", false, false

	case domain.DecisionLogin:
		// suspend: the guard is not held while waiting for login so a
		// fresh invocation may start in the meantime
		o.releaseGuard()
		o.logEvent("batch_suspended_for_login", zap.String("batch_id", state.ID))

		loginStatus, err := o.auth.AwaitLogin(ctx)
		if err != nil {
			o.logger.Warn("Login wait failed", zap.Error(err))
			o.emitComplete(o.failedSummary(state, fmt.Errorf("login not completed: %w", err)))
			return "", false, false
		}
		o.logEvent("batch_resumed_after_login",
			zap.String("batch_id", state.ID),
			zap.String("nickname", loginStatus.Nickname))

		// re-invoke from validation with the original snapshot
		if err := o.Start(ctx, state.Selection, state.PlaylistName); err != nil {
			o.emitComplete(o.failedSummary(state, err))
		}
		return "", false, false
	}

	// proceed anonymously; VIP tracks resolve to previews
	return "", false, true
}

// resolve runs the resolver over the full selection and classifies
// every answer into the item list. Returns false when the batch ended
// here (nothing fetchable).
func (o *Orchestrator) resolve(ctx context.Context, state *domain.BatchState, token string, authenticated bool) bool {
	o.setPhase(state, domain.PhaseResolving)

	ids := state.Selection.IDs()
	resolved, err := o.resolver.Resolve(ctx, ids, o.config.Quality, token)
	if err != nil {
		o.abort(state, "resolution interrupted: "+err.Error())
		return false
	}

	byID := make(map[int64]domain.ResolvedTrack, len(resolved))
	for _, rt := range resolved {
		byID[rt.ID] = rt
	}

	var items []*domain.DownloadItem
	for _, id := range ids {
		rt, ok := byID[id]
		if !ok {
			// absent from the response, same as an explicit failure
			state.Exclude(id, domain.ReasonResolutionFailed)
			continue
		}

		classification := domain.Classify(rt, authenticated)
		if !classification.Fetchable() {
			state.Exclude(id, classification.Reason)
			continue
		}

		track := state.Selection.Track(id)
		title := strconv.FormatInt(id, 10)
		filename := title + ".mp3"
		if track != nil {
			title = track.Name
			filename = track.Filename()
		}
		items = append(items, &domain.DownloadItem{
			TrackID:      id,
			Title:        title,
			Filename:     filename,
			URL:          rt.URL,
			Availability: classification.Availability,
			Outcome:      domain.ItemPending,
		})
	}

	state.Items = items
	state.Total = len(items)

	o.logEvent("batch_resolved",
		zap.String("batch_id", state.ID),
		zap.Int("fetchable", len(items)),
		zap.Int("excluded", len(state.Excluded)))

	if len(items) == 0 {
		o.abort(state, domain.ErrNoDownloadableTracks.Error())
		return false
	}
	return true
}

// finalize serializes the archive when anything succeeded, saves it,
// and emits the terminal summary
func (o *Orchestrator) finalize(state *domain.BatchState, archive domain.Archiver, succeeded int) {
	o.setPhase(state, domain.PhaseFinalizing)
	summary := state.Summarize()

	if succeeded == 0 {
		summary.Err = domain.ErrAllDownloadsFailed.Error()
		o.completeBatch(state, summary)
		if o.notifier != nil {
			o.notifier.NotifyBatchFailed(state.PlaylistName, summary.Err)
		}
		return
	}

	blob, err := archive.Finalize()
	if err != nil {
		// archive serialization failure is fatal for the batch
		o.setPhase(state, domain.PhaseAborted)
		o.releaseGuard()
		o.emitComplete(o.failedSummary(state, fmt.Errorf("failed to assemble archive: %w", err)))
		return
	}

	path, err := o.saveArchive(state.PlaylistName, blob)
	if err != nil {
		o.setPhase(state, domain.PhaseAborted)
		o.releaseGuard()
		o.emitComplete(o.failedSummary(state, err))
		return
	}

	summary.ArchivePath = path
	summary.ArchiveSize = int64(len(blob))
	o.completeBatch(state, summary)
	if o.notifier != nil {
		o.notifier.NotifyBatchCompleted(state.PlaylistName, len(summary.Succeeded), len(summary.Failed), len(summary.Excluded))
	}
}

// saveArchive writes the archive blob under
// {outputDir}/{playlistName}-{unixMillis}.zip
func (o *Orchestrator) saveArchive(playlistName string, blob []byte) (string, error) {
	if err := os.MkdirAll(o.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := domain.SanitizeFilename(fmt.Sprintf("%s-%d.zip", playlistName, time.Now().UnixMilli()))
	path := filepath.Join(o.config.OutputDir, name)
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return "", fmt.Errorf("failed to save archive: %w", err)
	}
	return path, nil
}

// abort terminates the batch before fetching with a user-visible
// reason, releasing the guard
func (o *Orchestrator) abort(state *domain.BatchState, reason string) {
	o.setPhase(state, domain.PhaseAborted)
	o.releaseGuard()

	summary := state.Summarize()
	summary.Err = reason
	o.logEvent("batch_aborted",
		zap.String("batch_id", state.ID),
		zap.String("reason", reason))
	o.emitComplete(summary)
}

// completeBatch releases the guard and emits the terminal summary
func (o *Orchestrator) completeBatch(state *domain.BatchState, summary *domain.Summary) {
	o.setPhase(state, domain.PhaseCompleted)
	o.releaseGuard()

	o.logEvent("batch_completed",
		zap.String("batch_id", state.ID),
		zap.Int("succeeded", len(summary.Succeeded)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("excluded", len(summary.Excluded)),
		zap.String("archive", summary.ArchivePath))
	o.emitComplete(summary)
}

// failedSummary builds a summary carrying a fatal batch error. It
// never touches the guard: a batch that failed after suspending for
// login no longer owns it, and may not clear it out from under a
// newer batch that started during the wait.
func (o *Orchestrator) failedSummary(state *domain.BatchState, err error) *domain.Summary {
	summary := state.Summarize()
	summary.Err = err.Error()
	o.logEvent("batch_failed",
		zap.String("batch_id", state.ID),
		zap.String("error", summary.Err))
	return summary
}

func (o *Orchestrator) setPhase(state *domain.BatchState, phase domain.BatchPhase) {
	o.mu.Lock()
	state.Phase = phase
	o.mu.Unlock()
}

func (o *Orchestrator) releaseGuard() {
	o.mu.Lock()
	o.active = false
	o.mu.Unlock()
}

func (o *Orchestrator) emitProgress(p domain.Progress) {
	o.mu.Lock()
	o.lastProgress = p
	o.mu.Unlock()

	if o.onProgress != nil {
		o.onProgress(p)
	}
}

func (o *Orchestrator) emitComplete(summary *domain.Summary) {
	if o.onComplete != nil {
		o.onComplete(summary)
	}
}

func (o *Orchestrator) logEvent(event string, fields ...zap.Field) {
	if o.events != nil {
		o.events.LogBatchEvent(event, fields...)
	}
}
