package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/config"
	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("document not found")

// RevisionFunc receives every committed revision of a subscribed record, in
// commit order.
type RevisionFunc func(rec *model.DocumentRecord)

// ErrorFunc receives non-terminal subscription errors
type ErrorFunc func(err error)

// MemoryStore is an in-memory document record store with change
// subscriptions. Records live as long as the process unless a document cap
// is configured, in which case the oldest settled records are evicted.
type MemoryStore struct {
	documents    map[string]*model.DocumentRecord
	subscribers  map[string]map[*subscriber]struct{}
	mu           sync.RWMutex
	maxDocuments int // Maximum documents to keep, 0 = unlimited
	now          func() time.Time
}

// NewMemoryStore creates a store honoring the configured document cap
func NewMemoryStore(cfg *config.StoreConfig) *MemoryStore {
	maxDocuments := cfg.MaxDocuments
	if maxDocuments < 0 {
		maxDocuments = 0
	}
	slog.Info("memory document store initialized", "max_documents", maxDocuments)
	return &MemoryStore{
		documents:    make(map[string]*model.DocumentRecord),
		subscribers:  make(map[string]map[*subscriber]struct{}),
		maxDocuments: maxDocuments,
		now:          time.Now,
	}
}

// Create registers a new record owned by ownerID and returns its id. ID,
// Revision and timestamps on initial are ignored.
func (s *MemoryStore) Create(ctx context.Context, ownerID string, initial model.DocumentRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := initial.Clone()
	rec.ID = uuid.New().String()
	rec.OwnerID = ownerID
	rec.Revision = 1
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt
	s.documents[rec.ID] = rec

	s.cleanupIfNeeded()
	return rec.ID, nil
}

// Update applies a field-level patch and notifies subscribers
func (s *MemoryStore) Update(ctx context.Context, id string, patch model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	patch.Apply(rec)
	rec.Revision++
	rec.UpdatedAt = s.now()

	for sub := range s.subscribers[id] {
		sub.push(rec.Clone())
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return rec.Clone(), nil
}

// ListByOwner returns the owner's records, newest first
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.DocumentRecord
	for _, rec := range s.documents {
		if rec.OwnerID == ownerID {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Subscribe delivers the current snapshot and then every later revision of
// the record until the returned function is called or ctx is done.
func (s *MemoryStore) Subscribe(ctx context.Context, id string, onRevision RevisionFunc, onError ErrorFunc) (func(), error) {
	s.mu.Lock()
	rec, ok := s.documents[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrDocumentNotFound
	}

	sub := newSubscriber(onRevision)
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[*subscriber]struct{})
	}
	s.subscribers[id][sub] = struct{}{}
	sub.push(rec.Clone())
	s.mu.Unlock()

	go sub.run()

	unsubscribe := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[id]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(s.subscribers, id)
			}
		}
		s.mu.Unlock()
		sub.stop()
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()

	return unsubscribe, nil
}

// cleanupIfNeeded removes the oldest settled documents if the store exceeds
// maxDocuments. Records still PROCESSING and watched records are never
// evicted, so the store may stay over the cap until they settle.
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxDocuments <= 0 || len(s.documents) <= s.maxDocuments {
		return
	}

	docs := make([]*model.DocumentRecord, 0, len(s.documents))
	for _, rec := range s.documents {
		if rec.UploadStatus == model.StatusProcessing || len(s.subscribers[rec.ID]) > 0 {
			continue
		}
		docs = append(docs, rec)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	excess := len(s.documents) - s.maxDocuments
	for i := 0; i < excess && i < len(docs); i++ {
		slog.Info("evicting old document record",
			"document_id", docs[i].ID,
			"upload_status", docs[i].UploadStatus,
			"created_at", docs[i].CreatedAt,
		)
		delete(s.documents, docs[i].ID)
	}
}

// Count returns the number of documents in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// subscriber owns an ordered delivery queue so writers never block on a slow
// consumer.
type subscriber struct {
	onRevision RevisionFunc

	mu    sync.Mutex
	queue []*model.DocumentRecord
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscriber(fn RevisionFunc) *subscriber {
	return &subscriber{
		onRevision: fn,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (s *subscriber) push(rec *model.DocumentRecord) {
	s.mu.Lock()
	s.queue = append(s.queue, rec)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			rec := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.onRevision(rec)
		}
	}
}
