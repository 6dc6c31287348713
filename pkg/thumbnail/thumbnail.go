package thumbnail

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp"

	"github.com/helmcode/cropdoc/pkg/model"
)

// State is the load state of one candidate's reference image
type State string

const (
	StateNone    State = "none"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// Tracker holds per-candidate states keyed by candidate position. Writes to
// different indexes never interfere; the last write to an index wins.
type Tracker struct {
	mu     sync.RWMutex
	states map[int]State
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[int]State)}
}

// Init resets the tracker for a new candidate list.
func (t *Tracker) Init(candidates []model.CandidateDisease) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[int]State, len(candidates))
	for i, c := range candidates {
		if c.HasReferenceImage {
			t.states[i] = StateLoading
		} else {
			t.states[i] = StateNone
		}
	}
}

func (t *Tracker) Set(i int, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[i] = s
}

func (t *Tracker) Get(i int) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[i]; ok {
		return s
	}
	return StateNone
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[int]State)
}

// Snapshot copies the current states.
func (t *Tracker) Snapshot() map[int]State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]State, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// Loader fetches candidate reference images
type Loader struct {
	http *resty.Client
}

func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{http: resty.New().SetTimeout(timeout)}
}

// Load initialises tracker for candidates and fetches every reference image
// concurrently. It returns once each fetch has settled.
func (l *Loader) Load(ctx context.Context, candidates []model.CandidateDisease, tracker *Tracker) {
	tracker.Init(candidates)

	var wg sync.WaitGroup
	for i, c := range candidates {
		if !c.HasReferenceImage {
			continue
		}
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			if l.fetch(ctx, url) {
				tracker.Set(i, StateLoaded)
				return
			}
			tracker.Set(i, StateError)
		}(i, c.ReferenceImageURL)
	}
	wg.Wait()
}

func (l *Loader) fetch(ctx context.Context, url string) bool {
	entry := log.WithField("url", url)

	resp, err := l.http.R().SetContext(ctx).Get(url)
	if err != nil {
		entry.WithError(err).Debug("reference image fetch failed")
		return false
	}
	if !resp.IsSuccess() {
		entry.WithField("status", resp.StatusCode()).Debug("reference image unavailable")
		return false
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(resp.Body())); err != nil {
		entry.WithError(err).Debug("reference image is not a decodable image")
		return false
	}
	return true
}
