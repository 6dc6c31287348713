package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/cropdoc/pkg/model"
)

func possibilities(n int) string {
	names := []string{"Anthracnose", "Gall Midge", "Powdery Mildew", "Sooty Mould", "Die Back", "Bacterial Canker", "Cutting Weevil"}
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"disease_name":%q,"confidence":%.2f,"description":"d%d","image_url":"http://img/%d.jpg"}`, names[i], 0.65-float64(i)*0.1, i, i))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestClassify_UncertainTruncatesToFive(t *testing.T) {
	body := []byte(`{"status":"uncertain_prediction","top_possibilities":` + possibilities(7) + `}`)

	res := Classify(body)

	require.Equal(t, model.KindUncertain, res.Kind)
	require.Len(t, res.Candidates, 5)
	assert.Equal(t, "Anthracnose", res.Candidates[0].Name)
	assert.Equal(t, "65%", model.Percent(res.Candidates[0].Confidence))
	assert.Equal(t, "Gall Midge", res.Candidates[1].Name)
	assert.Equal(t, "Die Back", res.Candidates[4].Name)
	assert.True(t, res.Candidates[0].HasReferenceImage)
	assert.Nil(t, res.Diagnosis)
	assert.Nil(t, res.Failure)
}

func TestClassify_ImageRagAlias(t *testing.T) {
	body := []byte(`{"image_rag_results":[{"name":"Sooty Mould","similarity":0.41,"image_url":"x","has_image":false},"Die Back"]}`)

	res := Classify(body)

	require.Equal(t, model.KindUncertain, res.Kind)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Sooty Mould", res.Candidates[0].Name)
	assert.InDelta(t, 0.41, res.Candidates[0].Confidence, 1e-9)
	assert.False(t, res.Candidates[0].HasReferenceImage)
	assert.Equal(t, "Die Back", res.Candidates[1].Name)
}

func TestClassify_PrefersUncertainOverConfident(t *testing.T) {
	body := []byte(`{"disease_info":{"disease_name":"Anthracnose"},"top_possibilities":` + possibilities(2) + `}`)

	res := Classify(body)

	assert.Equal(t, model.KindUncertain, res.Kind)
	assert.Equal(t, "uncertain", Shape(body))
}

func TestClassify_EmptyCandidatesFallThrough(t *testing.T) {
	body := []byte(`{"status":"uncertain_prediction","top_possibilities":[],"disease_info":{"disease_name":"Anthracnose"}}`)

	res := Classify(body)

	require.Equal(t, model.KindConfident, res.Kind)
	assert.Equal(t, "Anthracnose", res.Diagnosis.Name)
}

func TestClassify_UnusableCandidatesFallThrough(t *testing.T) {
	body := []byte(`{"top_possibilities":[1,2,3,{"confidence":0.4},"  "],"disease_info":{"disease_name":"Anthracnose"}}`)

	res := Classify(body)

	require.Equal(t, model.KindConfident, res.Kind)
	assert.Equal(t, "Anthracnose", res.Diagnosis.Name)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "confident", Shape(body))
}

func TestClassify_ConfidentShapes(t *testing.T) {
	cases := map[string]string{
		"disease_info":          `{"status":"confident_prediction","disease_info":{"disease_name":"Anthracnose","symptoms":"Dark spots","treatment":"Copper spray","prevention":"Prune","additional_info":"Humid weather","confidence_score":0.91,"source_documents":["doc1.pdf","doc2.pdf"]}}`,
		"text_rag_results":      `{"text_rag_results":{"name":"Anthracnose","symptoms":["Dark spots"],"treatment":"Copper spray","prevention":"Prune","additional_information":"Humid weather","confidence":0.91,"sources":[{"title":"doc1.pdf"},"doc2.pdf"]}}`,
		"text_rag_results_list": `{"text_rag_results":[{"disease_name":"Anthracnose","symptoms":"Dark spots","treatment":"Copper spray","prevention":"Prune","additional_info":"Humid weather","confidence_score":"0.91","source_documents":["doc1.pdf","doc2.pdf"]}]}`,
		"top_level":             `{"disease_name":"Anthracnose","symptoms":"Dark spots","treatment":"Copper spray","prevention":"Prune","additional_info":"Humid weather","confidence_score":0.91,"source_documents":["doc1.pdf","doc2.pdf"]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res := Classify([]byte(body))

			require.Equal(t, model.KindConfident, res.Kind)
			info := res.Diagnosis
			assert.Equal(t, "Anthracnose", info.Name)
			assert.Equal(t, "Dark spots", info.Symptoms)
			assert.Equal(t, "Copper spray", info.Treatment)
			assert.Equal(t, "Prune", info.Prevention)
			assert.Equal(t, "Humid weather", info.AdditionalInfo)
			assert.InDelta(t, 0.91, info.Confidence, 1e-9)
			assert.Equal(t, []string{"doc1.pdf", "doc2.pdf"}, info.SourceDocuments)
		})
	}
}

func TestClassify_ProcessingIncomplete(t *testing.T) {
	body := []byte(`{
		"status": "processing_incomplete",
		"message": "Text retrieval timed out",
		"partial_results": {
			"classification": {"disease_name": "Anthracnose", "confidence": 0.52, "description": "fungal"},
			"similar_diseases": [{"disease_name": "Die Back", "confidence": 0.3}, {"disease_name": "Sooty Mould", "confidence": 0.2}]
		}
	}`)

	res := Classify(body)

	require.Equal(t, model.KindPartialFailure, res.Kind)
	assert.Equal(t, model.FailureIncomplete, res.Failure.Kind)
	assert.Equal(t, "Text retrieval timed out", res.Failure.Message)
	require.NotNil(t, res.Failure.Partial)
	require.NotNil(t, res.Failure.Partial.Classification)
	assert.Equal(t, "Anthracnose", res.Failure.Partial.Classification.Name)
	assert.Len(t, res.Failure.Partial.SimilarDiseases, 2)
}

func TestClassify_SuccessFalseIsServiceFailure(t *testing.T) {
	res := Classify([]byte(`{"success":false,"message":"crop not supported"}`))

	require.Equal(t, model.KindPartialFailure, res.Kind)
	assert.Equal(t, model.FailureService, res.Failure.Kind)
	assert.Equal(t, "crop not supported", res.Failure.Message)
}

func TestClassify_RawFallbackKeepsPayload(t *testing.T) {
	inputs := []string{
		`{"status":"healthy","unexpected":{"nested":[1,2,3]}}`,
		`[1,2,3]`,
		`not json at all`,
		``,
		`null`,
	}
	for _, in := range inputs {
		res := Classify([]byte(in))
		require.Equal(t, model.KindRaw, res.Kind, in)
		assert.Equal(t, in, string(res.Raw))
	}
}

func TestClassify_FencedJSON(t *testing.T) {
	body := "```json\n{\"disease_info\":{\"disease_name\":\"Anthracnose\"}}\n```"

	res := Classify([]byte(body))

	require.Equal(t, model.KindConfident, res.Kind)
	assert.Equal(t, "Anthracnose", res.Diagnosis.Name)
}
