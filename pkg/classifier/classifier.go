package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/helmcode/cropdoc/pkg/model"
)

// Prediction is one ranked label from a pretrained image model
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Predictor is an opaque pretrained image classifier.
type Predictor interface {
	Predict(ctx context.Context, image []byte) ([]Prediction, error)
}

// PredictorFunc adapts a function to Predictor
type PredictorFunc func(ctx context.Context, image []byte) ([]Prediction, error)

func (f PredictorFunc) Predict(ctx context.Context, image []byte) ([]Prediction, error) {
	return f(ctx, image)
}

// HTTPPredictor posts raw image bytes to a model server
type HTTPPredictor struct {
	http *resty.Client
	url  string
}

func NewHTTPPredictor(url string, timeout time.Duration) *HTTPPredictor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPredictor{
		http: resty.New().SetTimeout(timeout),
		url:  url,
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, image []byte) ([]Prediction, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("model predict: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return decodePredictions(resp.Body())
}

// rawPrediction accepts the label/score spellings model servers use.
type rawPrediction struct {
	Label       string   `json:"label"`
	ClassName   string   `json:"className"`
	Class       string   `json:"class_name"`
	Score       *float64 `json:"score"`
	Probability *float64 `json:"probability"`
	Confidence  *float64 `json:"confidence"`
}

func (r rawPrediction) normalize() Prediction {
	p := Prediction{Label: firstNonEmpty(r.Label, r.ClassName, r.Class)}
	for _, s := range []*float64{r.Score, r.Probability, r.Confidence} {
		if s != nil {
			p.Score = *s
			break
		}
	}
	return p
}

func decodePredictions(body []byte) ([]Prediction, error) {
	var raw []rawPrediction
	if err := json.Unmarshal(body, &raw); err != nil {
		var wrapped struct {
			Predictions []rawPrediction `json:"predictions"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode predictions: %w", err)
		}
		raw = wrapped.Predictions
	}

	out := make([]Prediction, 0, len(raw))
	for _, r := range raw {
		if p := r.normalize(); p.Label != "" {
			out = append(out, p)
		}
	}
	return Ranked(out), nil
}

// Ranked sorts predictions by descending score, stable for ties.
func Ranked(preds []Prediction) []Prediction {
	out := make([]Prediction, len(preds))
	copy(out, preds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Candidates converts ranked predictions into display candidates.
func Candidates(preds []Prediction) []model.CandidateDisease {
	out := make([]model.CandidateDisease, 0, len(preds))
	for _, p := range preds {
		out = append(out, model.CandidateDisease{Name: p.Label, Confidence: p.Score})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
