// Package viewer keeps a live, reconciled view of one document for a
// connected consumer.
package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/Areen-09/legal-doc-demystifier/service"
	"github.com/Areen-09/legal-doc-demystifier/status"
	"golang.org/x/sync/singleflight"
)

const (
	SubscriptionAdvisory = "Could not load document data."
	BinaryURLAdvisory    = "Could not load the document file."
)

var ErrUnauthenticated = model.ErrUnauthenticated

const resolveTimeout = 30 * time.Second

// RecordSubscriber streams committed revisions of one record
type RecordSubscriber interface {
	Subscribe(ctx context.Context, id string, onRevision service.RevisionFunc, onError service.ErrorFunc) (func(), error)
}

// URLResolver turns a stored binary path into a downloadable URL
type URLResolver interface {
	ResolveDownloadURL(ctx context.Context, objectName string) (string, error)
}

// View is what the consumer renders. Advisory is a non-terminal problem
// shown alongside State.
type View struct {
	State     status.State `json:"state"`
	BinaryURL string       `json:"binaryUrl,omitempty"`
	Advisory  string       `json:"advisory,omitempty"`
}

type Controller struct {
	records  RecordSubscriber
	urls     URLResolver
	identity model.IdentityProvider
	resolves singleflight.Group
}

func NewController(records RecordSubscriber, urls URLResolver, identity model.IdentityProvider) *Controller {
	return &Controller{records: records, urls: urls, identity: identity}
}

// Watch emits a View for every accepted revision of documentID until detach
// is called or ctx is done. emit is never called concurrently, and never
// after detach returns.
//
// A document that doesn't exist or belongs to someone else yields a single
// not-found View.
func (c *Controller) Watch(ctx context.Context, documentID string, emit func(View)) (detach func(), err error) {
	if c.identity == nil {
		return nil, ErrUnauthenticated
	}
	id, ok := c.identity.CurrentIdentity(ctx)
	if !ok || id.UserID == "" {
		return nil, ErrUnauthenticated
	}

	ctx = logger.WithDocument(ctx, documentID)
	watchCtx, cancel := context.WithCancel(ctx)
	w := &watch{
		c:      c,
		ctx:    watchCtx,
		owner:  id.UserID,
		emit:   emit,
		events: make(chan event),
		exited: make(chan struct{}),
	}
	go w.loop()

	unsubscribe, err := c.records.Subscribe(watchCtx, documentID, w.onRevision, w.onError)
	if err != nil {
		cancel()
		<-w.exited
		if errors.Is(err, service.ErrDocumentNotFound) {
			emit(notFound())
			return func() {}, nil
		}
		return nil, err
	}

	var once sync.Once
	detach = func() {
		once.Do(func() {
			cancel()
			<-w.exited
			unsubscribe()
		})
	}
	return detach, nil
}

func notFound() View {
	return View{State: status.Reconcile(nil)}
}

type event struct {
	rec *model.DocumentRecord
	err error

	// binary URL resolution result
	resolved bool
	path     string
	url      string
}

// watch is the state of one Watch call, owned by its loop goroutine
type watch struct {
	c      *Controller
	ctx    context.Context
	owner  string
	emit   func(View)
	events chan event
	exited chan struct{}

	lastRevision int64
	state        *status.State
	foreign      bool

	binaryPath  string
	binaryURL   string
	resolving   bool
	attempted   string
	subAdvisory string
	urlAdvisory string
}

func (w *watch) send(ev event) {
	select {
	case w.events <- ev:
	case <-w.ctx.Done():
	}
}

func (w *watch) onRevision(rec *model.DocumentRecord) {
	w.send(event{rec: rec})
}

func (w *watch) onError(err error) {
	w.send(event{err: err})
}

func (w *watch) loop() {
	defer close(w.exited)

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-w.events:
			if w.ctx.Err() != nil {
				return
			}
			switch {
			case ev.rec != nil:
				w.handleRevision(ev.rec)
			case ev.resolved:
				w.handleResolved(ev)
			case ev.err != nil:
				w.handleError(ev.err)
			}
		}
	}
}

func (w *watch) handleRevision(rec *model.DocumentRecord) {
	if w.foreign || rec.Revision <= w.lastRevision {
		return
	}
	w.lastRevision = rec.Revision
	w.subAdvisory = ""

	if rec.OwnerID != w.owner {
		logger.Warn(w.ctx, "document watched by non-owner", "owner_id", rec.OwnerID)
		w.foreign = true
		w.emit(notFound())
		return
	}

	state := status.Reconcile(rec)
	w.state = &state

	if rec.BinaryPath != w.binaryPath {
		w.binaryPath = rec.BinaryPath
		w.binaryURL = ""
		w.urlAdvisory = ""
	}
	// a failed lookup gets another try on each accepted revision
	if w.urlAdvisory != "" && !w.resolving {
		w.attempted = ""
	}
	if w.c.urls != nil && rec.FileType.FixedLayout() && w.binaryPath != "" && w.binaryURL == "" && !w.resolving && w.attempted != w.binaryPath {
		w.resolve(w.binaryPath)
	}

	w.emit(w.view())
}

func (w *watch) handleResolved(ev event) {
	w.resolving = false
	if w.foreign {
		return
	}
	if ev.path != w.binaryPath {
		// the path moved on while resolving
		if w.binaryPath != "" && w.attempted != w.binaryPath {
			w.resolve(w.binaryPath)
		}
		return
	}
	if ev.err != nil {
		logger.Warn(w.ctx, "failed to resolve document url", "path", ev.path, "error", ev.err)
		w.urlAdvisory = BinaryURLAdvisory
	} else {
		w.binaryURL = ev.url
		w.urlAdvisory = ""
	}
	if w.state != nil {
		w.emit(w.view())
	}
}

func (w *watch) handleError(err error) {
	if w.foreign {
		return
	}
	logger.Warn(w.ctx, "document subscription error", "error", err)
	w.subAdvisory = SubscriptionAdvisory
	w.emit(w.view())
}

// resolve looks the URL up off the loop; the result comes back as an event
func (w *watch) resolve(path string) {
	w.resolving = true
	w.attempted = path

	go func() {
		v, err, _ := w.c.resolves.Do(path, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), resolveTimeout)
			defer cancel()
			return w.c.urls.ResolveDownloadURL(ctx, path)
		})
		url, _ := v.(string)
		w.send(event{resolved: true, path: path, url: url, err: err})
	}()
}

func (w *watch) view() View {
	v := View{BinaryURL: w.binaryURL}
	if w.state != nil {
		v.State = *w.state
	} else {
		v.State = status.State{Phase: status.Processing}
	}
	v.Advisory = w.subAdvisory
	if v.Advisory == "" {
		v.Advisory = w.urlAdvisory
	}
	return v
}
