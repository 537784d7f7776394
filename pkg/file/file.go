// Package file provides a prefz.Store backed by a single JSON document on
// disk, watched with fsnotify so edits by other processes flow back as
// change notifications.
//
// The document maps keys to raw JSON values:
//
//	{
//	    "retries": 5,
//	    "endpoint": "https://api.example.com"
//	}
//
// Values must be valid JSON; Set rejects anything else. Writes replace the
// document atomically (write to a temp file, then rename), so readers never
// observe a partially written document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/prefz"
)

// DefaultDebounce is the default settle time applied to file events before
// the document is reloaded. Editors and atomic renames produce bursts of
// events; debouncing coalesces each burst into a single reload.
const DefaultDebounce = 50 * time.Millisecond

// Store is a prefz.Store persisting to one JSON document.
type Store struct {
	path     string
	clock    clockz.Clock
	debounce time.Duration

	// fileMu serializes read-modify-write cycles on the document.
	fileMu sync.Mutex

	mu       sync.Mutex
	watchers map[string]map[int]func(raw []byte, ok bool)
	nextID   int
	count    int
	last     map[string]json.RawMessage
	stop     chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets a custom clock for debounce timing.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithDebounce sets the settle time applied to file events before reloading.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounce = d
	}
}

// New creates a Store persisting to the JSON document at path. The file does
// not need to exist yet; it is created on the first Set.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     filepath.Clean(path),
		clock:    clockz.RealClock,
		debounce: DefaultDebounce,
		watchers: make(map[string]map[int]func(raw []byte, ok bool)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the raw JSON value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, false, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, true, nil
}

// Set stores value under key. value must be valid JSON.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for key %q is not valid JSON", key)
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[key] = json.RawMessage(value)
	return s.write(doc)
}

// Delete removes key from the document. Deleting an absent key is a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.write(doc)
}

// Watch registers fn for subsequent changes to key. The first registration
// starts an fsnotify watch on the document's directory; releasing the last
// registration stops it.
func (s *Store) Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (prefz.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		if err := s.startLocked(); err != nil {
			return nil, err
		}
	}

	id := s.nextID
	s.nextID++
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]func(raw []byte, ok bool))
	}
	s.watchers[key][id] = fn
	s.count++

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers[key], id)
			if len(s.watchers[key]) == 0 {
				delete(s.watchers, key)
			}
			s.count--
			if s.count == 0 && s.stop != nil {
				close(s.stop)
				s.stop = nil
			}
		})
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return cancel, nil
}

// startLocked snapshots the current document and begins watching the
// document's directory. Watching the directory rather than the file survives
// atomic renames. Caller holds s.mu.
func (s *Store) startLocked() error {
	s.fileMu.Lock()
	doc, err := s.load()
	s.fileMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	s.last = doc
	s.stop = make(chan struct{})
	go s.run(watcher, s.stop)
	return nil
}

// run coalesces file events with a debounce timer and reloads the document
// when they settle.
func (s *Store) run(watcher *fsnotify.Watcher, stop chan struct{}) {
	defer watcher.Close()

	var timer clockz.Timer

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if timer == nil {
				timer = s.clock.NewTimer(s.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(s.debounce)
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Keep watching despite errors

		case <-timerC:
			s.reload()
		}
	}
}

// reload reads the document, diffs it against the last observed snapshot,
// and notifies the watchers of every key that changed.
func (s *Store) reload() {
	s.fileMu.Lock()
	doc, err := s.load()
	s.fileMu.Unlock()
	if err != nil {
		// Corrupt or unreadable document; keep the old snapshot and
		// wait for the next event.
		return
	}

	type delivery struct {
		fn  func(raw []byte, ok bool)
		raw []byte
		ok  bool
	}
	var deliveries []delivery

	s.mu.Lock()
	for key, raw := range doc {
		if old, ok := s.last[key]; ok && string(old) == string(raw) {
			continue
		}
		for _, fn := range s.watchers[key] {
			deliveries = append(deliveries, delivery{fn: fn, raw: []byte(raw), ok: true})
		}
	}
	for key := range s.last {
		if _, ok := doc[key]; ok {
			continue
		}
		for _, fn := range s.watchers[key] {
			deliveries = append(deliveries, delivery{fn: fn})
		}
	}
	s.last = doc
	s.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.raw, d.ok)
	}
}

// load reads the document. A missing file yields an empty document.
// Caller holds s.fileMu.
func (s *Store) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, err
	}
	doc := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document %s is not a JSON object: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the document atomically. Caller holds s.fileMu.
func (s *Store) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".prefz-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Ensure Store implements prefz.Store.
var _ prefz.Store = (*Store)(nil)
