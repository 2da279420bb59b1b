package script

import (
	"context"
	"fmt"

	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Registry ensures a script is present and loaded exactly once per id.
type Registry interface {
	Load(ctx context.Context, src, id string) error
}

// Fetcher retrieves a script body.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// LoadError reports a script that could not be fetched.
type LoadError struct {
	Src string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load script %s: %v", e.Src, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader is the Registry backed by a Document.
type Loader struct {
	doc     *Document
	fetcher Fetcher
	metrics *metrics.Metrics
	group   singleflight.Group // one fetch per id, shared by all waiters
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMetrics records script load results.
func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) {
		l.metrics = m
	}
}

// NewLoader creates a Loader that fetches scripts with fetcher into doc.
func NewLoader(doc *Document, fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		doc:     doc,
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves once the script identified by id is loaded.
//
// A loaded element resolves immediately. A failed element returns its
// recorded *LoadError to every later caller. Concurrent callers share one
// fetch; cancelling ctx only abandons this caller's wait.
func (l *Loader) Load(ctx context.Context, src, id string) error {
	if done, err := l.doc.settled(id); done {
		return err
	}

	ch := l.group.DoChan(id, func() (any, error) {
		// Double-check inside singleflight
		if done, err := l.doc.settled(id); done {
			return nil, err
		}
		return nil, l.load(context.WithoutCancel(ctx), src, id)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) load(ctx context.Context, src, id string) error {
	src = l.doc.insert(id, src)

	log.LogDebugWithFields("script", "Loading script", map[string]any{
		"id":  id,
		"src": src,
	})

	body, err := l.fetcher.Fetch(ctx, src)
	l.metrics.ObserveScriptLoad(id, err)
	if err != nil {
		loadErr := &LoadError{Src: src, Err: err}
		l.doc.finish(id, loadErr)
		log.LogWarnWithFields("script", "Script failed to load", map[string]any{
			"id":    id,
			"src":   src,
			"error": err.Error(),
		})
		return loadErr
	}

	// A script that throws while executing still fires its load event;
	// the missing global surfaces to whoever looks it up.
	if install, ok := l.doc.installer(id); ok {
		if err := install(body, l.doc); err != nil {
			log.LogWarnWithFields("script", "Script executed with errors", map[string]any{
				"id":    id,
				"error": err.Error(),
			})
		}
	}

	l.doc.finish(id, nil)
	log.LogInfoWithFields("script", "Script loaded", map[string]any{
		"id":  id,
		"src": src,
	})
	return nil
}
