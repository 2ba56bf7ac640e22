package sessions

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"streamwatch/models"
	"streamwatch/services/plexserver"
)

// Fetcher produces a session snapshot. Implemented by the live server
// client and the demo fixture provider.
type Fetcher interface {
	FetchSessions(ctx context.Context) ([]models.Session, error)
}

// MetadataFetcher produces the rich record for one content item.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ratingKey string) (*models.MovieMetadata, error)
}

const (
	retryAttempts  = 3
	retryBaseDelay = time.Second
)

// State is the consumer-visible snapshot. Selection is always a valid
// index into Sessions, or 0 when Sessions is empty.
type State struct {
	Sessions  []models.Session `json:"sessions"`
	Selection int              `json:"selection"`
	Loading   bool             `json:"loading"`
	LastError string           `json:"lastError,omitempty"`
}

// Synchronizer owns the session snapshot, the selection, and the
// metadata cache. All mutation happens through its methods; consumers
// never observe a snapshot paired with a stale selection.
type Synchronizer struct {
	mu sync.Mutex

	fetcher     Fetcher
	metaFetcher MetadataFetcher
	identity    models.Credential

	snapshot  []models.Session
	selection int
	loading   bool
	lastError string

	metadata      *models.MovieMetadata
	metadataError string

	// pendingActor survives a view refresh so an actor tap lands even
	// when the detail record is still loading. Owned here, cleared on
	// read (detail dismissal).
	pendingActor string

	baseDelay time.Duration

	refreshGen    uint64
	refreshCancel context.CancelFunc
	metaGen       uint64
	metaCancel    context.CancelFunc
}

// New creates a synchronizer over the given fetchers and the identity
// used for session-ownership comparison.
func New(fetcher Fetcher, metaFetcher MetadataFetcher, identity models.Credential) *Synchronizer {
	return &Synchronizer{
		fetcher:     fetcher,
		metaFetcher: metaFetcher,
		identity:    identity,
		snapshot:    []models.Session{},
		baseDelay:   retryBaseDelay,
	}
}

// SetSource swaps the fetchers and identity, e.g. after login, logout or
// a server-address change. The snapshot is kept; the next refresh
// reconciles against it as usual.
func (s *Synchronizer) SetSource(fetcher Fetcher, metaFetcher MetadataFetcher, identity models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetcher = fetcher
	s.metaFetcher = metaFetcher
	s.identity = identity
}

// Refresh fetches a new snapshot, reorders it owned-first, and
// reconciles the selection. A refresh already in flight is cancelled and
// superseded; at most one is ever outstanding. The loading flag covers
// the whole attempt sequence and is cleared exactly once.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.fetcher == nil {
		s.mu.Unlock()
		return plexserver.ErrNotAuthenticated
	}
	if s.refreshCancel != nil {
		s.refreshCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.refreshCancel = cancel
	s.refreshGen++
	gen := s.refreshGen

	// Reconciliation anchor: the identity of whatever is selected now.
	anchor := ""
	if len(s.snapshot) > 0 && s.selection < len(s.snapshot) {
		anchor = s.snapshot[s.selection].RatingKey
	}
	fetcher := s.fetcher
	identity := s.identity
	prior := s.selection
	s.loading = true
	s.mu.Unlock()

	fetched, err := fetchWithRetry(ctx, fetcher, s.baseDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.refreshGen {
		// Superseded; the newer refresh owns the state now.
		return err
	}
	s.loading = false
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.lastError = err.Error()
		return err
	}

	ordered := Reorder(fetched, identity)
	s.snapshot = ordered
	s.selection = Reconcile(ordered, anchor, prior, identity)
	s.lastError = ""
	return nil
}

// fetchWithRetry wraps the sessions fetch in a bounded retry: up to 3
// attempts, only for transient network failures, with linearly
// increasing backoff. Cancellation and non-transient failures abort
// immediately.
func fetchWithRetry(ctx context.Context, fetcher Fetcher, baseDelay time.Duration) ([]models.Session, error) {
	var fetched []models.Session
	err := retry.Do(
		func() error {
			list, err := fetcher.FetchSessions(ctx)
			if err != nil {
				return err
			}
			fetched = list
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(baseDelay),
		retry.DelayType(func(n uint, _ error, config *retry.Config) time.Duration {
			return time.Duration(n+1) * baseDelay
		}),
		retry.RetryIf(plexserver.IsTransient),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[sessions] refresh attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return fetched, nil
}

// Select moves the selection to index. The index must be valid for the
// current snapshot.
func (s *Synchronizer) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshot) == 0 {
		if index == 0 {
			return nil
		}
		return errors.New("no sessions to select")
	}
	if index < 0 || index >= len(s.snapshot) {
		return errors.New("selection index out of range")
	}
	s.selection = index
	return nil
}

// State returns a copy of the consumer-visible state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.Session, len(s.snapshot))
	copy(snapshot, s.snapshot)
	return State{
		Sessions:  snapshot,
		Selection: s.selection,
		Loading:   s.loading,
		LastError: s.lastError,
	}
}

// Selected returns the currently selected session, if any.
func (s *Synchronizer) Selected() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshot) == 0 || s.selection >= len(s.snapshot) {
		return models.Session{}, false
	}
	return s.snapshot[s.selection], true
}

// FetchMetadata retrieves the rich record for ratingKey and replaces the
// stored one wholesale. No retry wrapper: metadata fetches follow an
// explicit user selection, so the caller owns retry-via-reselection.
// A fetch already in flight is cancelled and superseded.
func (s *Synchronizer) FetchMetadata(ctx context.Context, ratingKey string) (*models.MovieMetadata, error) {
	s.mu.Lock()
	if s.metaFetcher == nil {
		s.mu.Unlock()
		return nil, plexserver.ErrNotAuthenticated
	}
	if s.metaCancel != nil {
		s.metaCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.metaCancel = cancel
	s.metaGen++
	gen := s.metaGen
	fetcher := s.metaFetcher
	s.mu.Unlock()

	meta, err := fetcher.FetchMetadata(ctx, ratingKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.metaGen {
		return meta, err
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Stale detail for a different selection would be worse than a
		// blank one, so a failed fetch clears the record.
		s.metadata = nil
		s.metadataError = err.Error()
		return nil, err
	}
	s.metadata = meta
	s.metadataError = ""
	return meta, nil
}

// Metadata returns the stored record and the last metadata error.
func (s *Synchronizer) Metadata() (*models.MovieMetadata, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata, s.metadataError
}

// ClearMetadata drops the stored record, e.g. when the detail view is
// dismissed.
func (s *Synchronizer) ClearMetadata() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = nil
	s.metadataError = ""
}

// Reset drops all state: snapshot, selection, metadata, errors. Used on
// logout.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshCancel != nil {
		s.refreshCancel()
	}
	if s.metaCancel != nil {
		s.metaCancel()
	}
	s.refreshGen++
	s.metaGen++
	s.snapshot = []models.Session{}
	s.selection = 0
	s.loading = false
	s.lastError = ""
	s.metadata = nil
	s.metadataError = ""
	s.pendingActor = ""
}

// SetPendingActor stores an actor name selected before the detail record
// finished loading.
func (s *Synchronizer) SetPendingActor(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingActor = name
}

// TakePendingActor returns the pending actor selection and clears it.
func (s *Synchronizer) TakePendingActor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.pendingActor
	s.pendingActor = ""
	return name
}
