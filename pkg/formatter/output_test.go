package formatter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/thumbnail"
)

func init() {
	color.NoColor = true
}

func TestDisplayResults_HumanUncertain(t *testing.T) {
	res := model.NewUncertain([]model.CandidateDisease{
		{Name: "Anthracnose", Confidence: 0.65, Description: "Dark sunken lesions.", ReferenceImageURL: "http://x/a.png", HasReferenceImage: true},
		{Name: "Gall Midge", Confidence: 0.184, ReferenceImageURL: "http://x/g.png", HasReferenceImage: true},
		{Name: "Die Back", Confidence: 0.04},
	})
	var buf bytes.Buffer

	req := &model.AnalysisRequest{InputKind: model.InputImage, CropType: "Mango", Advisor: "Dr. Crop Expert"}

	err := DisplayResults(&buf, res, req, "human", map[int]thumbnail.State{0: thumbnail.StateLoaded, 1: thumbnail.StateError})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "1. Anthracnose (65% match)")
	assert.Contains(t, out, "2. Gall Midge (18% match)")
	assert.Contains(t, out, "http://x/a.png")
	assert.Contains(t, out, "Reference image unavailable")
	assert.Contains(t, out, "No reference image")
	assert.Contains(t, out, `cropdoc select "Anthracnose" --crop "Mango" --advisor "Dr. Crop Expert"`)
	assert.NotContains(t, out, "<crop>")
}

func TestSelectHint(t *testing.T) {
	assert.Equal(t, `cropdoc select "Die Back" --crop <crop>`, selectHint("Die Back", nil))
	assert.Equal(t, `cropdoc select "Die Back" --crop "Mango"`, selectHint("Die Back", &model.AnalysisRequest{CropType: "Mango"}))
}

func TestDisplayResults_HumanConfident(t *testing.T) {
	res := model.NewConfident(&model.DiseaseInfo{
		Name:            "Gall Midge",
		Treatment:       "Prune infested shoots.",
		Confidence:      0.915,
		SourceDocuments: []string{"Mango IPM Guide"},
	})
	var buf bytes.Buffer

	require.NoError(t, DisplayResults(&buf, res, nil, "", nil))

	out := buf.String()
	assert.Contains(t, out, "DIAGNOSIS: Gall Midge")
	assert.Contains(t, out, "Confidence: 92%")
	assert.Contains(t, out, "Prune infested shoots.")
	assert.Contains(t, out, "Mango IPM Guide")
	assert.NotContains(t, out, "SYMPTOMS")
}

func TestDisplayResults_HumanFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DisplayResults(&buf, model.NewFailure(model.FailureService, "model unavailable", nil), nil, "human", nil))
	assert.Contains(t, buf.String(), "ANALYSIS FAILED")
	assert.Contains(t, buf.String(), "model unavailable")

	buf.Reset()
	partial := &model.PartialResults{
		Classification:  &model.CandidateDisease{Name: "Anthracnose", Confidence: 0.65},
		SimilarDiseases: []model.CandidateDisease{{Name: "Sooty Mould", Confidence: 0.05}},
	}
	require.NoError(t, DisplayResults(&buf, model.NewFailure(model.FailureIncomplete, "retrieval timed out", partial), nil, "human", nil))
	assert.Contains(t, buf.String(), "ANALYSIS INCOMPLETE")
	assert.Contains(t, buf.String(), "Most likely: Anthracnose (65%)")
	assert.Contains(t, buf.String(), "Sooty Mould (5%)")
}

func TestDisplayResults_JSONRaw(t *testing.T) {
	t.Run("json payload kept as is", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, DisplayResults(&buf, model.NewRaw([]byte(`{"foo":[1,2]}`)), nil, "json", nil))

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "raw", got["kind"])
		assert.Equal(t, map[string]any{"foo": []any{1.0, 2.0}}, got["raw"])
	})

	t.Run("text payload becomes a string", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, DisplayResults(&buf, model.NewRaw([]byte("plain text")), nil, "json", nil))

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "plain text", got["raw"])
	})
}

func TestDisplayResults_YAML(t *testing.T) {
	var buf bytes.Buffer
	res := model.NewUncertain([]model.CandidateDisease{{Name: "Anthracnose", Confidence: 0.65}})

	require.NoError(t, DisplayResults(&buf, res, nil, "yaml", nil))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "uncertain", got["kind"])
	require.Len(t, got["candidates"], 1)

	buf.Reset()
	require.NoError(t, DisplayResults(&buf, model.NewRaw([]byte(`{"foo":"bar"}`)), nil, "yaml", nil))
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]any{"foo": "bar"}, got["raw"])
}

func TestDisplayResults_UnknownFormat(t *testing.T) {
	err := DisplayResults(&bytes.Buffer{}, model.NewRaw(nil), nil, "xml", nil)
	assert.Error(t, err)
}
