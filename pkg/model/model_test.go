package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, "65%", Percent(0.65))
	assert.Equal(t, "0%", Percent(0))
	assert.Equal(t, "100%", Percent(1))
	assert.Equal(t, "13%", Percent(0.125))
	assert.Equal(t, "87%", Percent(0.8666))
}

func TestValidate(t *testing.T) {
	img := &AnalysisRequest{InputKind: InputImage, CropType: "Mango"}
	require.ErrorIs(t, img.Validate(), ErrInvalidRequest)

	img.ImagePayload = []byte{0xff, 0xd8}
	assert.NoError(t, img.Validate())

	sel := &AnalysisRequest{InputKind: InputDiseaseSelection, CropType: "Mango", SelectedDiseaseName: "  "}
	require.ErrorIs(t, sel.Validate(), ErrInvalidRequest)

	sel.SelectedDiseaseName = "Gall Midge"
	assert.NoError(t, sel.Validate())

	assert.ErrorIs(t, (&AnalysisRequest{InputKind: "text"}).Validate(), ErrInvalidRequest)

	var nilReq *AnalysisRequest
	assert.ErrorIs(t, nilReq.Validate(), ErrInvalidRequest)
}

func TestSelectionForCarriesContext(t *testing.T) {
	orig := &AnalysisRequest{
		InputKind:    InputImage,
		CropType:     "Mango",
		Advisor:      "Dr. Crop Expert",
		ImagePayload: []byte{1, 2, 3},
		Symptoms:     "black spots on leaves",
	}

	sel := orig.SelectionFor("Gall Midge")

	assert.Equal(t, InputDiseaseSelection, sel.InputKind)
	assert.Equal(t, "Gall Midge", sel.SelectedDiseaseName)
	assert.Equal(t, "Mango", sel.CropType)
	assert.Equal(t, "Dr. Crop Expert", sel.Advisor)
	assert.Equal(t, "black spots on leaves", sel.Symptoms)
	assert.Empty(t, sel.ImagePayload)
}

func TestNewUncertainTruncatesAndCopies(t *testing.T) {
	in := make([]CandidateDisease, 7)
	for i := range in {
		in[i] = CandidateDisease{Name: string(rune('A' + i))}
	}

	res := NewUncertain(in)
	require.Len(t, res.Candidates, MaxCandidates)
	assert.Equal(t, "A", res.Candidates[0].Name)
	assert.Equal(t, "E", res.Candidates[4].Name)

	in[0].Name = "changed"
	assert.Equal(t, "A", res.Candidates[0].Name)

	c, ok := res.Candidate("c")
	assert.True(t, ok)
	assert.Equal(t, "C", c.Name)
}

func TestNewFailureDefaultsMessage(t *testing.T) {
	res := NewFailure(FailureTransport, "", nil)
	assert.Equal(t, KindPartialFailure, res.Kind)
	assert.Equal(t, GenericNetworkMessage, res.Failure.Message)
}

func TestStatusLog(t *testing.T) {
	var l StatusLog
	l.Append("one")
	l.Append("two")

	entries := l.Entries()
	assert.Equal(t, []string{"one", "two"}, entries)
	entries[0] = "mutated"
	assert.Equal(t, "one", l.Entries()[0])

	l.Reset()
	assert.Equal(t, 0, l.Len())
}
