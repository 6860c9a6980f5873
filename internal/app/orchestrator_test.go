package app

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/tunepack-go/internal/domain"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
	"go.uber.org/zap"
)

type stubResolver struct {
	mu     sync.Mutex
	fn     func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error)
	tokens []string
}

func (r *stubResolver) Resolve(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
	r.mu.Lock()
	r.tokens = append(r.tokens, token)
	r.mu.Unlock()
	return r.fn(ctx, ids, quality, token)
}

func (r *stubResolver) seenTokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

type stubAuth struct {
	mu          sync.Mutex
	statuses    []domain.LoginStatus
	awaitStatus domain.LoginStatus
	awaitErr    error
	awaitCalls  int
}

func (a *stubAuth) LoginStatus(ctx context.Context) (domain.LoginStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.statuses) == 0 {
		return domain.LoginStatus{}, nil
	}
	status := a.statuses[0]
	if len(a.statuses) > 1 {
		a.statuses = a.statuses[1:]
	}
	return status, nil
}

func (a *stubAuth) AwaitLogin(ctx context.Context) (domain.LoginStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.awaitCalls = a.awaitCalls + 1
	return a.awaitStatus, a.awaitErr
}

type stubDecider struct {
	decision domain.VipDecision
	calls    int
}

func (d *stubDecider) DecideVIP(ctx context.Context, vipTracks []*domain.Track) (domain.VipDecision, error) {
	d.calls++
	return d.decision, nil
}

func newTrackServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-payload"))
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func freeTrack(id int64, name string) *domain.Track {
	return &domain.Track{ID: id, Name: name, Artists: []domain.Artist{{Name: "Artist"}}, Fee: domain.FeeFree}
}

func vipTrack(id int64, name string) *domain.Track {
	return &domain.Track{ID: id, Name: name, Artists: []domain.Artist{{Name: "Artist"}}, Fee: domain.FeeVIP}
}

func newTestOrchestrator(t *testing.T, resolver domain.TrackResolver, auth domain.AuthProvider) (*Orchestrator, chan *domain.Summary, *domain.DownloadConfig) {
	t.Helper()
	config := &domain.DownloadConfig{
		OutputDir:    t.TempDir(),
		ChunkSize:    50,
		Quality:      domain.QualityExHigh,
		FetchTimeout: 5 * time.Second,
	}
	collector := infrastructure.NewCollector(5*time.Second, "tunepack-test", zap.NewNop())
	factory := domain.ArchiveFactory(func() domain.Archiver { return infrastructure.NewZipArchive() })

	orc := NewOrchestrator(resolver, auth, collector, factory, config, zap.NewNop())
	done := make(chan *domain.Summary, 2)
	orc.SetCompleteCallback(func(s *domain.Summary) { done <- s })
	return orc, done, config
}

func waitSummary(t *testing.T, done chan *domain.Summary) *domain.Summary {
	t.Helper()
	select {
	case summary := <-done:
		return summary
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not complete in time")
		return nil
	}
}

func TestOrchestratorPreconditions(t *testing.T) {
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return nil, nil
	}}
	orc, _, _ := newTestOrchestrator(t, resolver, &stubAuth{})

	err := orc.Start(context.Background(), domain.NewTrackSelection(), "Empty")
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	err = orc.Start(context.Background(), nil, "Nil")
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestOrchestratorArchiverUnavailable(t *testing.T) {
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return nil, nil
	}}
	orc, _, _ := newTestOrchestrator(t, resolver, &stubAuth{})
	orc.newArchive = nil

	selection := domain.NewTrackSelection()
	selection.Add(freeTrack(1, "One"))

	err := orc.Start(context.Background(), selection, "NoZip")
	assert.ErrorIs(t, err, domain.ErrArchiverUnavailable)
}

func TestOrchestratorRejectsConcurrentBatch(t *testing.T) {
	server := newTrackServer(t)
	block := make(chan struct{})
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		<-block
		return []domain.ResolvedTrack{{ID: 1, URL: server.URL + "/ok", Code: domain.ResolveCodeOK}}, nil
	}}
	orc, done, _ := newTestOrchestrator(t, resolver, &stubAuth{})

	selection := domain.NewTrackSelection()
	selection.Add(freeTrack(1, "One"))

	require.NoError(t, orc.Start(context.Background(), selection, "First"))

	// the guard flag rejects a second batch without touching the first
	err := orc.Start(context.Background(), selection, "Second")
	assert.ErrorIs(t, err, domain.ErrBatchInProgress)

	close(block)
	summary := waitSummary(t, done)
	assert.Equal(t, []int64{1}, summary.Succeeded)

	// guard released after completion, a fresh batch may start
	assert.False(t, orc.Status().Active)
}

func TestOrchestratorMixedOutcomes(t *testing.T) {
	server := newTrackServer(t)
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return []domain.ResolvedTrack{
			{ID: 1, URL: server.URL + "/ok", Code: domain.ResolveCodeOK},
			{ID: 2, URL: server.URL + "/fail", Code: domain.ResolveCodeOK},
			{ID: 3, Code: domain.ResolveCodeNotFound},
		}, nil
	}}
	orc, done, config := newTestOrchestrator(t, resolver, &stubAuth{})

	var progress []domain.Progress
	var mu sync.Mutex
	orc.SetProgressCallback(func(p domain.Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})

	selection := domain.NewTrackSelection()
	selection.Add(freeTrack(1, "One"))
	selection.Add(freeTrack(2, "Two"))
	selection.Add(freeTrack(3, "Three"))

	require.NoError(t, orc.Start(context.Background(), selection, "My Playlist"))
	summary := waitSummary(t, done)

	assert.Equal(t, []int64{1}, summary.Succeeded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, int64(2), summary.Failed[0].TrackID)
	assert.Contains(t, summary.Failed[0].Reason, "500")
	require.Len(t, summary.Excluded, 1)
	assert.Equal(t, int64(3), summary.Excluded[0].TrackID)
	assert.Equal(t, domain.ReasonNotFound, summary.Excluded[0].Reason)
	assert.Empty(t, summary.Err)

	// progress fired after every attempted item, success or not
	mu.Lock()
	require.Len(t, progress, 2)
	assert.Equal(t, domain.Progress{Completed: 2, Total: 2, CurrentID: 2}, progress[1])
	mu.Unlock()

	// archive saved as {playlistName}-{unixMillis}.zip with one entry
	require.NotEmpty(t, summary.ArchivePath)
	assert.True(t, strings.HasPrefix(strings.TrimSuffix(summary.ArchivePath, ".zip"), config.OutputDir+"/My Playlist-"))

	reader, err := zip.OpenReader(summary.ArchivePath)
	require.NoError(t, err)
	defer reader.Close()
	require.Len(t, reader.File, 1)
	assert.Equal(t, "Artist - One.mp3", reader.File[0].Name)
}

func TestOrchestratorAllFailed(t *testing.T) {
	server := newTrackServer(t)
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return []domain.ResolvedTrack{{ID: 1, URL: server.URL + "/fail", Code: domain.ResolveCodeOK}}, nil
	}}
	orc, done, config := newTestOrchestrator(t, resolver, &stubAuth{})

	selection := domain.NewTrackSelection()
	selection.Add(freeTrack(1, "One"))

	require.NoError(t, orc.Start(context.Background(), selection, "Doomed"))
	summary := waitSummary(t, done)

	assert.Equal(t, domain.ErrAllDownloadsFailed.Error(), summary.Err)
	assert.Empty(t, summary.ArchivePath)

	// nothing succeeded, no archive written
	entries, err := os.ReadDir(config.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrchestratorNothingDownloadable(t *testing.T) {
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return []domain.ResolvedTrack{{ID: 1, Code: domain.ResolveCodeNotFound}}, nil
	}}
	orc, done, _ := newTestOrchestrator(t, resolver, &stubAuth{})

	selection := domain.NewTrackSelection()
	selection.Add(freeTrack(1, "One"))
	selection.Add(freeTrack(2, "Two"))

	require.NoError(t, orc.Start(context.Background(), selection, "Gone"))
	summary := waitSummary(t, done)

	assert.Equal(t, domain.ErrNoDownloadableTracks.Error(), summary.Err)
	require.Len(t, summary.Excluded, 2)
	assert.Equal(t, domain.ReasonNotFound, summary.Excluded[0].Reason)
	// track 2 was absent from the response entirely
	assert.Equal(t, domain.ReasonResolutionFailed, summary.Excluded[1].Reason)
	assert.False(t, orc.Status().Active)
}

func TestOrchestratorVipProceedAnonymously(t *testing.T) {
	server := newTrackServer(t)
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		// anonymous resolution answers VIP tracks with trial previews
		return []domain.ResolvedTrack{{ID: 9, URL: server.URL + "/ok", Code: domain.ResolveCodeOK, Fee: domain.FeeVIP}}, nil
	}}
	decider := &stubDecider{decision: domain.DecisionProceed}
	orc, done, _ := newTestOrchestrator(t, resolver, &stubAuth{})
	orc.SetDecider(decider)

	selection := domain.NewTrackSelection()
	selection.Add(vipTrack(9, "Members Only"))

	require.NoError(t, orc.Start(context.Background(), selection, "VIP Mix"))
	summary := waitSummary(t, done)

	assert.Equal(t, 1, decider.calls)
	assert.Equal(t, []int64{9}, summary.Succeeded)
	assert.Equal(t, []string{""}, resolver.seenTokens())
}

func TestOrchestratorVipCancel(t *testing.T) {
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		t.Error("resolver must not be called for a cancelled batch")
		return nil, nil
	}}
	decider := &stubDecider{decision: domain.DecisionCancel}
	orc, done, _ := newTestOrchestrator(t, resolver, &stubAuth{})
	orc.SetDecider(decider)

	selection := domain.NewTrackSelection()
	selection.Add(vipTrack(9, "Members Only"))

	require.NoError(t, orc.Start(context.Background(), selection, "VIP Mix"))
	summary := waitSummary(t, done)

	assert.Equal(t, "cancelled by user", summary.Err)
	assert.Empty(t, summary.Succeeded)
	assert.False(t, orc.Status().Active)
}

func TestOrchestratorVipLoginAndResume(t *testing.T) {
	server := newTrackServer(t)
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return []domain.ResolvedTrack{{ID: 9, URL: server.URL + "/ok", Code: domain.ResolveCodeOK, Fee: domain.FeeVIP}}, nil
	}}
	auth := &stubAuth{
		statuses: []domain.LoginStatus{
			{}, // anonymous on the first pass
			{Authenticated: true, SessionToken: "MUSIC_U=abc", Nickname: "listener"},
		},
		awaitStatus: domain.LoginStatus{Authenticated: true, SessionToken: "MUSIC_U=abc", Nickname: "listener"},
	}
	decider := &stubDecider{decision: domain.DecisionLogin}
	orc, done, _ := newTestOrchestrator(t, resolver, auth)
	orc.SetDecider(decider)

	selection := domain.NewTrackSelection()
	selection.Add(vipTrack(9, "Members Only"))

	require.NoError(t, orc.Start(context.Background(), selection, "VIP Mix"))
	summary := waitSummary(t, done)

	assert.Equal(t, 1, auth.awaitCalls)
	assert.Equal(t, 1, decider.calls)
	assert.Equal(t, []int64{9}, summary.Succeeded)
	// the resumed batch resolves with the fresh session token
	assert.Equal(t, []string{"MUSIC_U=abc"}, resolver.seenTokens())
}

func TestOrchestratorAuthenticatedSkipsDecision(t *testing.T) {
	server := newTrackServer(t)
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		return []domain.ResolvedTrack{{ID: 9, URL: server.URL + "/ok", Code: domain.ResolveCodeOK, Fee: domain.FeeVIP}}, nil
	}}
	auth := &stubAuth{statuses: []domain.LoginStatus{{Authenticated: true, SessionToken: "MUSIC_U=xyz"}}}
	decider := &stubDecider{decision: domain.DecisionCancel}
	orc, done, _ := newTestOrchestrator(t, resolver, auth)
	orc.SetDecider(decider)

	selection := domain.NewTrackSelection()
	selection.Add(vipTrack(9, "Members Only"))

	require.NoError(t, orc.Start(context.Background(), selection, "VIP Mix"))
	summary := waitSummary(t, done)

	assert.Equal(t, 0, decider.calls)
	assert.Equal(t, []int64{9}, summary.Succeeded)
	assert.Equal(t, []string{"MUSIC_U=xyz"}, resolver.seenTokens())
}

// blockingAuth parks AwaitLogin until released, then answers with the
// configured status and error
type blockingAuth struct {
	entered chan struct{}
	release chan struct{}
	status  domain.LoginStatus
	err     error
}

func newBlockingAuth(status domain.LoginStatus, err error) *blockingAuth {
	return &blockingAuth{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		status:  status,
		err:     err,
	}
}

func (a *blockingAuth) LoginStatus(ctx context.Context) (domain.LoginStatus, error) {
	return domain.LoginStatus{}, nil
}

func (a *blockingAuth) AwaitLogin(ctx context.Context) (domain.LoginStatus, error) {
	close(a.entered)
	<-a.release
	return a.status, a.err
}

func TestOrchestratorLoginFailureLeavesRunningBatchGuard(t *testing.T) {
	server := newTrackServer(t)
	blockB := make(chan struct{})
	resolverEntered := make(chan struct{})
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		// only the second batch's free track reaches resolution
		close(resolverEntered)
		<-blockB
		return []domain.ResolvedTrack{{ID: 1, URL: server.URL + "/ok", Code: domain.ResolveCodeOK}}, nil
	}}
	auth := newBlockingAuth(domain.LoginStatus{}, context.DeadlineExceeded)
	orc, done, _ := newTestOrchestrator(t, resolver, auth)
	orc.SetDecider(&stubDecider{decision: domain.DecisionLogin})

	vipSelection := domain.NewTrackSelection()
	vipSelection.Add(vipTrack(9, "Members Only"))
	freeSelection := domain.NewTrackSelection()
	freeSelection.Add(freeTrack(1, "One"))

	// batch A suspends for login, releasing the guard
	require.NoError(t, orc.Start(context.Background(), vipSelection, "Suspended"))
	<-auth.entered

	// batch B claims the guard while A is waiting
	require.NoError(t, orc.Start(context.Background(), freeSelection, "Running"))
	<-resolverEntered

	// A's login wait fails; it reports failure without touching B's guard
	close(auth.release)
	summaryA := waitSummary(t, done)
	assert.Contains(t, summaryA.Err, "login not completed")

	// B still holds the guard, a third batch is rejected
	err := orc.Start(context.Background(), vipSelection, "Third")
	assert.ErrorIs(t, err, domain.ErrBatchInProgress)

	close(blockB)
	summaryB := waitSummary(t, done)
	assert.Equal(t, []int64{1}, summaryB.Succeeded)
	assert.False(t, orc.Status().Active)
}

func TestOrchestratorResumeBlockedByRunningBatch(t *testing.T) {
	server := newTrackServer(t)
	blockB := make(chan struct{})
	resolverEntered := make(chan struct{})
	resolver := &stubResolver{fn: func(ctx context.Context, ids []int64, quality domain.QualityLevel, token string) ([]domain.ResolvedTrack, error) {
		close(resolverEntered)
		<-blockB
		return []domain.ResolvedTrack{{ID: 1, URL: server.URL + "/ok", Code: domain.ResolveCodeOK}}, nil
	}}
	auth := newBlockingAuth(domain.LoginStatus{Authenticated: true, SessionToken: "MUSIC_U=abc"}, nil)
	orc, done, _ := newTestOrchestrator(t, resolver, auth)
	orc.SetDecider(&stubDecider{decision: domain.DecisionLogin})

	vipSelection := domain.NewTrackSelection()
	vipSelection.Add(vipTrack(9, "Members Only"))
	freeSelection := domain.NewTrackSelection()
	freeSelection.Add(freeTrack(1, "One"))

	require.NoError(t, orc.Start(context.Background(), vipSelection, "Suspended"))
	<-auth.entered

	require.NoError(t, orc.Start(context.Background(), freeSelection, "Running"))
	<-resolverEntered

	// A's login succeeds but the re-invocation finds B active; A ends
	// with batch-in-progress and must leave B's guard set
	close(auth.release)
	summaryA := waitSummary(t, done)
	assert.Equal(t, domain.ErrBatchInProgress.Error(), summaryA.Err)

	err := orc.Start(context.Background(), vipSelection, "Third")
	assert.ErrorIs(t, err, domain.ErrBatchInProgress)

	close(blockB)
	summaryB := waitSummary(t, done)
	assert.Equal(t, []int64{1}, summaryB.Succeeded)
	assert.False(t, orc.Status().Active)
}
