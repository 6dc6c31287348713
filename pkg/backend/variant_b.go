package backend

import (
	"context"
	"encoding/base64"

	"github.com/helmcode/cropdoc/pkg/model"
)

// variantB sends the photo base64-encoded inside a JSON body and also offers
// crop and advisor listings.
type variantB struct {
	baseClient
}

type analyzeDiseasePayload struct {
	ImageData  string  `json:"image_data"`
	CropType   string  `json:"crop_type"`
	SMEAdvisor *string `json:"sme_advisor"`
	Symptoms   string  `json:"symptoms,omitempty"`
}

type diseaseInfoPayload struct {
	DiseaseName string  `json:"disease_name"`
	CropType    string  `json:"crop_type"`
	SMEAdvisor  *string `json:"sme_advisor"`
	Symptoms    string  `json:"symptoms,omitempty"`
}

func (v *variantB) Variant() Variant { return VariantB }

func (v *variantB) SubmitImage(ctx context.Context, req *model.AnalysisRequest) (*Response, error) {
	return v.postJSON(ctx, PathAnalyzeDisease, analyzeDiseasePayload{
		ImageData:  base64.StdEncoding.EncodeToString(req.ImagePayload),
		CropType:   req.CropType,
		SMEAdvisor: optional(req.Advisor),
		Symptoms:   req.Symptoms,
	})
}

func (v *variantB) ConfirmDisease(ctx context.Context, req *model.AnalysisRequest) (*Response, error) {
	return v.postJSON(ctx, PathGetDiseaseInfo, diseaseInfoPayload{
		DiseaseName: req.SelectedDiseaseName,
		CropType:    req.CropType,
		SMEAdvisor:  optional(req.Advisor),
		Symptoms:    req.Symptoms,
	})
}

func (v *variantB) Crops(ctx context.Context) ([]string, error) {
	return v.getNames(ctx, PathAvailableCrops, "crops", "available_crops")
}

func (v *variantB) Advisors(ctx context.Context) ([]string, error) {
	return v.getNames(ctx, PathAvailableAdvice, "smes", "available_smes", "advisors")
}
