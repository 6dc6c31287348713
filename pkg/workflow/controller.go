package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/helmcode/cropdoc/pkg/backend"
	"github.com/helmcode/cropdoc/pkg/classifier"
	"github.com/helmcode/cropdoc/pkg/metrics"
	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/thumbnail"
)

// ErrNoContext is returned by SelectCandidate when there is no earlier
// analysis whose crop and advisor could be carried forward.
var ErrNoContext = errors.New("no earlier analysis to select a candidate from")

const DefaultPredictorThreshold = 0.7

type Options struct {
	StatusInterval   time.Duration
	ImageStatus      []string
	SelectionStatus  []string
	OnStatus         func(msg string)
	Thumbnails       *thumbnail.Loader
	Predictor        classifier.Predictor
	PredictThreshold float64
	Logger           log.Interface
}

// Controller runs analyses against a Service and publishes their progress
// and outcome into a State. Starting a new analysis cancels the one in
// flight; results of a replaced analysis are dropped.
type Controller struct {
	svc   backend.Service
	state *State
	opts  Options

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

func New(svc backend.Service, state *State, opts Options) *Controller {
	if state == nil {
		state = NewState()
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.ImageStatus == nil {
		opts.ImageStatus = DefaultImageStatus
	}
	if opts.SelectionStatus == nil {
		opts.SelectionStatus = DefaultSelectionStatus
	}
	if opts.PredictThreshold <= 0 {
		opts.PredictThreshold = DefaultPredictorThreshold
	}
	if opts.Logger == nil {
		opts.Logger = log.Log
	}
	return &Controller{svc: svc, state: state, opts: opts}
}

func (c *Controller) State() *State {
	return c.state
}

// RunAnalysis sends req to the service and returns the classified result.
// It never returns nil: every failure is folded into a partial-failure
// result. The loading flag is raised for the duration of the call.
func (c *Controller) RunAnalysis(ctx context.Context, req *model.AnalysisRequest) (res *model.AnalysisResult) {
	ctx, gen, cancel := c.begin(ctx, req)
	started := time.Now()
	input := "unknown"
	if req != nil {
		input = string(req.InputKind)
	}
	logger := c.opts.Logger.WithFields(log.Fields{"input": input, "generation": gen})
	metrics.InFlight.Inc()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("analysis panicked: %v", r)
			res = model.NewFailure(model.FailureTransport, "", nil)
		}
		metrics.InFlight.Dec()
		metrics.AnalysesTotal.WithLabelValues(input, string(res.Kind)).Inc()
		metrics.AnalysisDurationSeconds.WithLabelValues(input).Observe(time.Since(started).Seconds())
		c.complete(gen, cancel, res)
		logger.WithFields(log.Fields{"result": res.Kind, "duration": time.Since(started)}).Info("analysis finished")
	}()

	stop := c.startStatus(ctx, gen, c.statusFor(req))
	defer stop()

	logger.Info("analysis started")
	return c.dispatch(ctx, req, logger)
}

// SelectCandidate re-enters the workflow for a candidate picked from an
// uncertain result, with crop and advisor taken from the previous request.
func (c *Controller) SelectCandidate(ctx context.Context, diseaseName string) (*model.AnalysisResult, error) {
	prev := c.state.LastRequest()
	if prev == nil {
		return nil, ErrNoContext
	}
	if strings.TrimSpace(diseaseName) == "" {
		return nil, fmt.Errorf("%w: disease name is required", model.ErrInvalidRequest)
	}
	return c.RunAnalysis(ctx, prev.SelectionFor(strings.TrimSpace(diseaseName))), nil
}

// Reset cancels any analysis in flight and clears State.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.state.reset()
}

// LoadThumbnails fetches the reference images of the current uncertain
// result into the state's tracker. It is a no-op for other results.
func (c *Controller) LoadThumbnails(ctx context.Context) {
	if c.opts.Thumbnails == nil {
		return
	}
	c.state.mu.RLock()
	res, tracker := c.state.result, c.state.thumbnails
	c.state.mu.RUnlock()
	if res == nil || res.Kind != model.KindUncertain {
		return
	}
	c.opts.Thumbnails.Load(ctx, res.Candidates, tracker)
}

func (c *Controller) begin(parent context.Context, req *model.AnalysisRequest) (context.Context, uint64, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		metrics.ReplacedTotal.Inc()
		c.opts.Logger.WithField("generation", c.generation).Info("replacing analysis in flight")
	}
	ctx, cancel := context.WithCancel(parent)
	c.generation++
	c.cancel = cancel
	c.state.begin(req, loadingText(req))
	return ctx, c.generation, cancel
}

// complete publishes res if gen is still current. A replaced analysis
// leaves State to its successor.
func (c *Controller) complete(gen uint64, cancel context.CancelFunc, res *model.AnalysisResult) {
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.opts.Logger.WithField("generation", gen).Debug("dropping result of replaced analysis")
		return
	}
	c.cancel = nil
	c.state.finish(res)
}

func (c *Controller) statusFor(req *model.AnalysisRequest) []string {
	if req != nil && req.InputKind == model.InputDiseaseSelection {
		return c.opts.SelectionStatus
	}
	return c.opts.ImageStatus
}

func loadingText(req *model.AnalysisRequest) string {
	if req != nil && req.InputKind == model.InputDiseaseSelection {
		return fmt.Sprintf("Getting information for %s...", req.SelectedDiseaseName)
	}
	return "Analyzing disease in your crop image..."
}

func (c *Controller) dispatch(ctx context.Context, req *model.AnalysisRequest, logger log.Interface) *model.AnalysisResult {
	if err := req.Validate(); err != nil {
		logger.WithError(err).Warn("refusing invalid request")
		return model.NewFailure(model.FailureValidation, err.Error(), nil)
	}

	switch req.InputKind {
	case model.InputImage:
		if c.opts.Predictor != nil {
			return c.predict(ctx, req, logger)
		}
		return c.call(ctx, req, c.svc.SubmitImage, logger)
	default:
		return c.call(ctx, req, c.svc.ConfirmDisease, logger)
	}
}

type serviceCall func(context.Context, *model.AnalysisRequest) (*backend.Response, error)

func (c *Controller) call(ctx context.Context, req *model.AnalysisRequest, fn serviceCall, logger log.Interface) *model.AnalysisResult {
	resp, err := fn(ctx, req)
	if err != nil && ctx.Err() != nil {
		logger.WithError(ctx.Err()).Info("analysis cancelled")
		return model.NewFailure(model.FailureTransport, fmt.Sprintf("Analysis cancelled: %v", ctx.Err()), nil)
	}
	if err != nil {
		logger.WithError(err).Warn("diagnosis service unreachable")
		return model.NewFailure(model.FailureTransport, model.GenericNetworkMessage, nil)
	}
	res := Interpret(resp)
	if res.Kind == model.KindPartialFailure {
		logger.WithFields(log.Fields{"status": resp.StatusCode, "failure": res.Failure.Kind}).Warn(res.Failure.Message)
	}
	return res
}

// predict runs the local image model first. A confident top label goes
// straight to disease details; otherwise the ranked labels are offered as
// candidates.
func (c *Controller) predict(ctx context.Context, req *model.AnalysisRequest, logger log.Interface) *model.AnalysisResult {
	preds, err := c.opts.Predictor.Predict(ctx, req.ImagePayload)
	if err != nil {
		logger.WithError(err).Warn("local image model failed")
		return model.NewFailure(model.FailureService, "Image classification failed. Please try again.", nil)
	}
	ranked := classifier.Ranked(preds)
	if len(ranked) == 0 {
		return model.NewFailure(model.FailureIncomplete, "The image model returned no predictions.", nil)
	}

	top := ranked[0]
	logger.WithFields(log.Fields{"label": top.Label, "score": top.Score}).Info("local prediction")
	if top.Score >= c.opts.PredictThreshold {
		return c.call(ctx, req.SelectionFor(top.Label), c.svc.ConfirmDisease, logger)
	}
	return model.NewUncertain(classifier.Candidates(ranked))
}
