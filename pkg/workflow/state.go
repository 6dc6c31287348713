package workflow

import (
	"sync"

	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/thumbnail"
)

// State is what a front-end renders: the loading flag, the latest result,
// an error message for failures and the status log of the current analysis.
type State struct {
	mu          sync.RWMutex
	loading     bool
	loadingText string
	result      *model.AnalysisResult
	errMsg      string
	lastRequest *model.AnalysisRequest
	thumbnails  *thumbnail.Tracker

	Status model.StatusLog
}

func NewState() *State {
	return &State{thumbnails: thumbnail.NewTracker()}
}

// Snapshot is a point-in-time copy of State
type Snapshot struct {
	Loading     bool                    `json:"loading" yaml:"loading"`
	LoadingText string                  `json:"loading_text,omitempty" yaml:"loading_text,omitempty"`
	Result      *model.AnalysisResult   `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string                  `json:"error,omitempty" yaml:"error,omitempty"`
	StatusLog   []string                `json:"status_log" yaml:"status_log"`
	Thumbnails  map[int]thumbnail.State `json:"thumbnails,omitempty" yaml:"thumbnails,omitempty"`
}

func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *State) Result() *model.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *State) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// LastRequest is the request the current result answers, nil before the
// first analysis or after a reset.
func (s *State) LastRequest() *model.AnalysisRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRequest
}

func (s *State) Thumbnails() *thumbnail.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thumbnails
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Loading:     s.loading,
		LoadingText: s.loadingText,
		Result:      s.result,
		Error:       s.errMsg,
		StatusLog:   s.Status.Entries(),
		Thumbnails:  s.thumbnails.Snapshot(),
	}
}

// begin clears the previous outcome and raises the loading flag. A fresh
// thumbnail tracker is swapped in so loads from an older result cannot
// write into the new one.
func (s *State) begin(req *model.AnalysisRequest, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.loadingText = text
	s.result = nil
	s.errMsg = ""
	s.lastRequest = req
	s.thumbnails = thumbnail.NewTracker()
	s.Status.Reset()
}

func (s *State) finish(res *model.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.loadingText = ""
	s.result = res
	s.errMsg = ""
	if res != nil && res.Kind == model.KindPartialFailure && res.Failure != nil && res.Failure.Kind != model.FailureIncomplete {
		s.errMsg = res.Failure.Message
	}
}

func (s *State) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.loadingText = ""
	s.result = nil
	s.errMsg = ""
	s.lastRequest = nil
	s.thumbnails.Reset()
	s.thumbnails = thumbnail.NewTracker()
	s.Status.Reset()
}
