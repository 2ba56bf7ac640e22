package sessions

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"streamwatch/models"
	"streamwatch/services/plexserver"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	results []func() ([]models.Session, error)
}

func (f *stubFetcher) FetchSessions(ctx context.Context) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]()
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubMetaFetcher struct {
	meta *models.MovieMetadata
	err  error
}

func (f *stubMetaFetcher) FetchMetadata(ctx context.Context, ratingKey string) (*models.MovieMetadata, error) {
	return f.meta, f.err
}

func transientErr() error {
	return &plexserver.NetworkError{Op: "https /status/sessions", Err: syscall.ECONNREFUSED}
}

func ok(list []models.Session) func() ([]models.Session, error) {
	return func() ([]models.Session, error) { return list, nil }
}

func fail(err error) func() ([]models.Session, error) {
	return func() ([]models.Session, error) { return nil, err }
}

func newTestSync(f Fetcher, mf MetadataFetcher) *Synchronizer {
	s := New(f, mf, me)
	s.baseDelay = 5 * time.Millisecond
	return s
}

func TestRefreshRetriesTransientAndSurfacesLastError(t *testing.T) {
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		fail(transientErr()),
		fail(transientErr()),
		fail(transientErr()),
	}}
	s := newTestSync(fetcher, nil)

	start := time.Now()
	err := s.Refresh(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Equal(t, 3, fetcher.callCount(), "exactly 3 attempts")
	// Linear backoff between attempts: base + 2*base.
	require.GreaterOrEqual(t, elapsed, 15*time.Millisecond, "delays should increase linearly")

	state := s.State()
	require.False(t, state.Loading)
	require.NotEmpty(t, state.LastError)
}

func TestRefreshDoesNotRetryNonTransient(t *testing.T) {
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		fail(&plexserver.DecodeError{Err: errors.New("bad xml")}),
	}}
	s := newTestSync(fetcher, nil)

	err := s.Refresh(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, fetcher.callCount(), "non-transient failures abort immediately")
}

func TestRefreshDoesNotRetryInvalidToken(t *testing.T) {
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		fail(plexserver.ErrInvalidToken),
	}}
	s := newTestSync(fetcher, nil)

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, plexserver.ErrInvalidToken)
	require.Equal(t, 1, fetcher.callCount())
}

func TestRefreshCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		func() ([]models.Session, error) {
			cancel()
			return nil, transientErr()
		},
	}}
	s := newTestSync(fetcher, nil)

	err := s.Refresh(ctx)
	require.Error(t, err)
	require.Equal(t, 1, fetcher.callCount(), "no attempts after cancellation")

	state := s.State()
	require.False(t, state.Loading, "loading cleared exactly once")
	require.Empty(t, state.LastError, "cancellation is not a user-visible error")
}

func TestRefreshKeepsSnapshotOnFailure(t *testing.T) {
	good := []models.Session{vs("x", models.User{ID: 42})}
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		ok(good),
		fail(&plexserver.DecodeError{Err: errors.New("bad xml")}),
	}}
	s := newTestSync(fetcher, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.Error(t, s.Refresh(context.Background()))

	state := s.State()
	require.Len(t, state.Sessions, 1, "displayed data survives a failed refresh")
	require.NotEmpty(t, state.LastError)

	// Next success clears the stored error.
	fetcher.mu.Lock()
	fetcher.results = append(fetcher.results, ok(good))
	fetcher.mu.Unlock()
	require.NoError(t, s.Refresh(context.Background()))
	require.Empty(t, s.State().LastError)
}

func TestRefreshSelectionTracksIdentity(t *testing.T) {
	foreign := models.User{ID: 7}
	snapA := []models.Session{vs("x", foreign), vs("y", foreign)}
	// x moves, new items appear.
	snapB := []models.Session{vs("n1", foreign), vs("n2", foreign), vs("x", foreign)}

	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		ok(snapA), ok(snapB),
	}}
	s := newTestSync(fetcher, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.Equal(t, 0, s.State().Selection)

	require.NoError(t, s.Refresh(context.Background()))
	state := s.State()
	require.Equal(t, 2, state.Selection, "selection follows rating key, not position")
	require.Equal(t, "x", state.Sessions[state.Selection].RatingKey)
}

func TestRefreshSelectionFallsBackToOwned(t *testing.T) {
	foreign := models.User{ID: 7}
	owned := models.User{ID: 42}
	snapA := []models.Session{vs("x", foreign)}
	snapB := []models.Session{vs("a", foreign), vs("mine", owned)}

	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		ok(snapA), ok(snapB),
	}}
	s := newTestSync(fetcher, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.Refresh(context.Background()))

	state := s.State()
	// Owned session was reordered to the front and selected.
	require.Equal(t, 0, state.Selection)
	require.Equal(t, "mine", state.Sessions[0].RatingKey)
}

func TestRefreshEmptySnapshotIsSentinel(t *testing.T) {
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		ok([]models.Session{vs("x", models.User{ID: 7})}),
		ok(nil),
	}}
	s := newTestSync(fetcher, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.Refresh(context.Background()))

	state := s.State()
	require.Empty(t, state.Sessions)
	require.Equal(t, 0, state.Selection)
}

func TestSelectValidatesBounds(t *testing.T) {
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		ok([]models.Session{vs("a", models.User{ID: 7}), vs("b", models.User{ID: 8})}),
	}}
	s := newTestSync(fetcher, nil)
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.Select(1))
	require.Error(t, s.Select(2))
	require.Error(t, s.Select(-1))
	require.Equal(t, 1, s.State().Selection)
}

func TestFetchMetadataClearsOnFailure(t *testing.T) {
	meta := &models.MovieMetadata{RatingKey: "x", Title: "A Movie"}
	mf := &stubMetaFetcher{meta: meta}
	s := newTestSync(nil, mf)

	got, err := s.FetchMetadata(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, "A Movie", got.Title)

	stored, msg := s.Metadata()
	require.NotNil(t, stored)
	require.Empty(t, msg)

	mf.meta = nil
	mf.err = &plexserver.NetworkError{Op: "fetch", Err: syscall.ETIMEDOUT}
	_, err = s.FetchMetadata(context.Background(), "x")
	require.Error(t, err)

	stored, msg = s.Metadata()
	require.Nil(t, stored, "failed fetch clears the displayed record")
	require.NotEmpty(t, msg)
}

func TestPendingActorClearedOnTake(t *testing.T) {
	s := newTestSync(nil, nil)
	s.SetPendingActor("Duane Jones")
	require.Equal(t, "Duane Jones", s.TakePendingActor())
	require.Empty(t, s.TakePendingActor())
}

func TestRefreshWithoutFetcherIsNotAuthenticated(t *testing.T) {
	s := newTestSync(nil, nil)
	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, plexserver.ErrNotAuthenticated)
}

func TestResetDropsState(t *testing.T) {
	fetcher := &stubFetcher{results: []func() ([]models.Session, error){
		ok([]models.Session{vs("a", models.User{ID: 42})}),
	}}
	s := newTestSync(fetcher, &stubMetaFetcher{meta: &models.MovieMetadata{RatingKey: "a"}})
	require.NoError(t, s.Refresh(context.Background()))
	_, err := s.FetchMetadata(context.Background(), "a")
	require.NoError(t, err)

	s.Reset()
	state := s.State()
	require.Empty(t, state.Sessions)
	require.Equal(t, 0, state.Selection)
	stored, _ := s.Metadata()
	require.Nil(t, stored)
}
