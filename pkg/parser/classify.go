package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/helmcode/cropdoc/pkg/model"
)

// shapeMatcher recognises one response shape. It returns nil when the
// document does not have that shape.
type shapeMatcher struct {
	name  string
	match func(doc map[string]any) *model.AnalysisResult
}

// Order matters: a payload that fits several shapes resolves to the first.
var matchers = []shapeMatcher{
	{name: "uncertain", match: matchUncertain},
	{name: "confident", match: matchConfident},
	{name: "partial", match: matchPartial},
}

// Classify maps a service response body onto an AnalysisResult. It never
// fails: bodies matching no known shape come back as KindRaw carrying the
// input bytes unchanged.
func Classify(body []byte) *model.AnalysisResult {
	doc, ok := decodeObject(body)
	if !ok {
		return model.NewRaw(body)
	}
	for _, m := range matchers {
		if res := m.match(doc); res != nil {
			return res
		}
	}
	return model.NewRaw(body)
}

// Shape names the matcher Classify would pick, "raw" if none.
func Shape(body []byte) string {
	doc, ok := decodeObject(body)
	if !ok {
		return "raw"
	}
	for _, m := range matchers {
		if m.match(doc) != nil {
			return m.name
		}
	}
	return "raw"
}

func matchUncertain(doc map[string]any) *model.AnalysisResult {
	items := list(doc, "top_possibilities", "image_rag_results")
	cs := candidates(items)
	if len(cs) == 0 {
		return nil
	}
	return model.NewUncertain(cs)
}

func matchConfident(doc map[string]any) *model.AnalysisResult {
	if info := object(doc, "disease_info", "text_rag_results"); info != nil {
		return model.NewConfident(diseaseInfo(info))
	}
	if first := firstObject(list(doc, "text_rag_results")); first != nil {
		return model.NewConfident(diseaseInfo(first))
	}
	if str(doc, "disease_name") != "" {
		return model.NewConfident(diseaseInfo(doc))
	}
	return nil
}

func matchPartial(doc map[string]any) *model.AnalysisResult {
	partial := object(doc, "partial_results")
	incomplete := str(doc, "status") == "processing_incomplete" || partial != nil
	success, hasSuccess := boolean(doc, "success")

	switch {
	case incomplete:
		return model.NewFailure(model.FailureIncomplete, str(doc, "message", "detail", "error"), partialResults(partial))
	case hasSuccess && !success:
		return model.NewFailure(model.FailureService, str(doc, "message", "detail", "error"), nil)
	}
	return nil
}

func candidates(items []any) []model.CandidateDisease {
	out := make([]model.CandidateDisease, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			if c := candidate(v); c.Name != "" {
				out = append(out, c)
			}
		case string:
			if name := strings.TrimSpace(v); name != "" {
				out = append(out, model.CandidateDisease{Name: name})
			}
		}
	}
	return out
}

func candidate(m map[string]any) model.CandidateDisease {
	c := model.CandidateDisease{
		Name:              str(m, "disease_name", "name", "label", "disease_class"),
		Description:       str(m, "description", "summary"),
		ReferenceImageURL: str(m, "image_url", "reference_image_url"),
	}
	c.Confidence, _ = number(m, "confidence", "confidence_score", "score", "similarity")
	hasImage, set := boolean(m, "has_image")
	c.HasReferenceImage = c.ReferenceImageURL != "" && (!set || hasImage)
	return c
}

func diseaseInfo(m map[string]any) *model.DiseaseInfo {
	info := &model.DiseaseInfo{
		Name:            str(m, "disease_name", "name", "disease", "disease_class"),
		Symptoms:        str(m, "symptoms"),
		Treatment:       str(m, "treatment"),
		Prevention:      str(m, "prevention"),
		AdditionalInfo:  str(m, "additional_info", "additional_information"),
		SourceDocuments: strList(m, "source_documents", "sources"),
	}
	info.Confidence, _ = number(m, "confidence_score", "confidence")
	return info
}

func partialResults(m map[string]any) *model.PartialResults {
	if m == nil {
		return nil
	}
	pr := &model.PartialResults{}
	if cls := object(m, "classification"); cls != nil {
		c := candidate(cls)
		pr.Classification = &c
	}
	if similar := list(m, "similar_diseases"); len(similar) > 0 {
		pr.SimilarDiseases = candidates(similar)
	}
	return pr
}

// decodeObject parses body as a JSON object, tolerating markdown fences
// around it.
func decodeObject(body []byte) (map[string]any, bool) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil && doc != nil {
		return doc, true
	}
	cleaned := stripFences(string(body))
	if cleaned == "" || cleaned == strings.TrimSpace(string(body)) {
		return nil, false
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

var fenceRe = regexp.MustCompile("```[a-zA-Z]*\n|```")

// stripFences removes markdown code fences such as ```json ... ```
func stripFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}
