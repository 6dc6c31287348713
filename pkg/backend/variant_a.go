package backend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/helmcode/cropdoc/pkg/model"
)

// variantA uploads the photo as multipart form data and confirms a picked
// disease by class name.
type variantA struct {
	baseClient
}

type confirmDiseasePayload struct {
	DiseaseClass string  `json:"disease_class"`
	CropType     string  `json:"crop_type"`
	SMEAdvisor   *string `json:"sme_advisor"`
	Symptoms     string  `json:"symptoms,omitempty"`
}

func (v *variantA) Variant() Variant { return VariantA }

func (v *variantA) SubmitImage(ctx context.Context, req *model.AnalysisRequest) (*Response, error) {
	name := req.ImageName
	if name == "" {
		name = "image.jpg"
	}
	contentType := req.ImageContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	form := map[string]string{"cropType": req.CropType}
	if req.Advisor != "" {
		form["smeAdvisor"] = req.Advisor
	}
	if req.Symptoms != "" {
		form["symptoms"] = req.Symptoms
	}

	v.logger.WithField("bytes", len(req.ImagePayload)).Debug("uploading image")

	resp, err := v.http.R().
		SetContext(ctx).
		SetMultipartField("image", name, contentType, bytes.NewReader(req.ImagePayload)).
		SetMultipartFormData(form).
		Post(PathGiveImage)
	if err != nil {
		v.logger.WithError(err).Warn("image upload failed")
		return nil, fmt.Errorf("post %s: %w", PathGiveImage, err)
	}
	return toResponse(resp), nil
}

func (v *variantA) ConfirmDisease(ctx context.Context, req *model.AnalysisRequest) (*Response, error) {
	return v.postJSON(ctx, PathConfirmDisease, confirmDiseasePayload{
		DiseaseClass: req.SelectedDiseaseName,
		CropType:     req.CropType,
		SMEAdvisor:   optional(req.Advisor),
		Symptoms:     req.Symptoms,
	})
}

func (v *variantA) Crops(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("crops: %w", ErrUnsupported)
}

func (v *variantA) Advisors(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("advisors: %w", ErrUnsupported)
}

// optional maps "" to a JSON null
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
