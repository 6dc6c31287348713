package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// InputKind selects which service call an analysis request maps to
type InputKind string

const (
	InputImage            InputKind = "image"
	InputDiseaseSelection InputKind = "disease_selection"
)

type AnalysisRequest struct {
	InputKind           InputKind `json:"input_kind"`
	CropType            string    `json:"crop_type"`
	Advisor             string    `json:"sme_advisor,omitempty"`
	ImagePayload        []byte    `json:"-"`
	ImageName           string    `json:"image_name,omitempty"`
	ImageContentType    string    `json:"image_content_type,omitempty"`
	SelectedDiseaseName string    `json:"selected_disease_name,omitempty"`
	Symptoms            string    `json:"symptoms,omitempty"`
}

var ErrInvalidRequest = errors.New("invalid analysis request")

// Validate checks the fields the transport needs. Business rules (crop list,
// image size) belong to the input collector.
func (r *AnalysisRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	switch r.InputKind {
	case InputImage:
		if len(r.ImagePayload) == 0 {
			return fmt.Errorf("%w: image payload is required", ErrInvalidRequest)
		}
	case InputDiseaseSelection:
		if strings.TrimSpace(r.SelectedDiseaseName) == "" {
			return fmt.Errorf("%w: selected disease name is required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown input kind %q", ErrInvalidRequest, r.InputKind)
	}
	return nil
}

// SelectionFor builds the follow-up request for a picked candidate, keeping
// crop, advisor and symptoms from r.
func (r *AnalysisRequest) SelectionFor(diseaseName string) *AnalysisRequest {
	return &AnalysisRequest{
		InputKind:           InputDiseaseSelection,
		CropType:            r.CropType,
		Advisor:             r.Advisor,
		SelectedDiseaseName: diseaseName,
		Symptoms:            r.Symptoms,
	}
}

// ResultKind tags which AnalysisResult payload is populated
type ResultKind string

const (
	KindConfident      ResultKind = "confident"
	KindUncertain      ResultKind = "uncertain"
	KindPartialFailure ResultKind = "partial_failure"
	KindRaw            ResultKind = "raw"
)

// MaxCandidates is how many uncertain candidates are kept for display.
const MaxCandidates = 5

type AnalysisResult struct {
	Kind       ResultKind         `json:"kind" yaml:"kind"`
	Diagnosis  *DiseaseInfo       `json:"diagnosis,omitempty" yaml:"diagnosis,omitempty"`
	Candidates []CandidateDisease `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Failure    *PartialFailure    `json:"failure,omitempty" yaml:"failure,omitempty"`
	Raw        json.RawMessage    `json:"raw,omitempty" yaml:"-"`
}

type CandidateDisease struct {
	Name              string  `json:"disease_name" yaml:"disease_name"`
	Description       string  `json:"description,omitempty" yaml:"description,omitempty"`
	Confidence        float64 `json:"confidence" yaml:"confidence"`
	ReferenceImageURL string  `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	HasReferenceImage bool    `json:"has_image" yaml:"has_image"`
}

type DiseaseInfo struct {
	Name            string   `json:"disease_name" yaml:"disease_name"`
	Symptoms        string   `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	Treatment       string   `json:"treatment,omitempty" yaml:"treatment,omitempty"`
	Prevention      string   `json:"prevention,omitempty" yaml:"prevention,omitempty"`
	AdditionalInfo  string   `json:"additional_info,omitempty" yaml:"additional_info,omitempty"`
	Confidence      float64  `json:"confidence_score,omitempty" yaml:"confidence_score,omitempty"`
	SourceDocuments []string `json:"source_documents,omitempty" yaml:"source_documents,omitempty"`
}

// FailureKind separates the error taxonomy carried by a PartialFailure
type FailureKind string

const (
	FailureTransport  FailureKind = "transport"
	FailureService    FailureKind = "service"
	FailureIncomplete FailureKind = "incomplete"
	FailureValidation FailureKind = "validation"
)

type PartialFailure struct {
	Kind    FailureKind     `json:"kind" yaml:"kind"`
	Message string          `json:"message" yaml:"message"`
	Partial *PartialResults `json:"partial_results,omitempty" yaml:"partial_results,omitempty"`
}

// PartialResults is whatever a pipeline produced before it stopped.
type PartialResults struct {
	Classification  *CandidateDisease  `json:"classification,omitempty" yaml:"classification,omitempty"`
	SimilarDiseases []CandidateDisease `json:"similar_diseases,omitempty" yaml:"similar_diseases,omitempty"`
}

// GenericNetworkMessage is shown when the service gave no usable message.
const GenericNetworkMessage = "Network error. Please check your connection and try again."

func NewConfident(info *DiseaseInfo) *AnalysisResult {
	return &AnalysisResult{Kind: KindConfident, Diagnosis: info}
}

// NewUncertain keeps at most MaxCandidates, preserving order.
func NewUncertain(candidates []CandidateDisease) *AnalysisResult {
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	out := make([]CandidateDisease, len(candidates))
	copy(out, candidates)
	return &AnalysisResult{Kind: KindUncertain, Candidates: out}
}

func NewFailure(kind FailureKind, message string, partial *PartialResults) *AnalysisResult {
	if message == "" {
		message = GenericNetworkMessage
	}
	return &AnalysisResult{Kind: KindPartialFailure, Failure: &PartialFailure{Kind: kind, Message: message, Partial: partial}}
}

func NewRaw(body []byte) *AnalysisResult {
	return &AnalysisResult{Kind: KindRaw, Raw: json.RawMessage(body)}
}

// Candidate returns the uncertain candidate with the given name.
func (r *AnalysisResult) Candidate(name string) (CandidateDisease, bool) {
	for _, c := range r.Candidates {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return CandidateDisease{}, false
}

// Percent renders a [0,1] confidence as a rounded whole percentage.
func Percent(confidence float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(confidence*100)))
}
