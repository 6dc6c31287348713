package input

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/helmcode/cropdoc/pkg/model"
)

// MaxImageBytes is the largest photo accepted for upload.
const MaxImageBytes = 10 * 1024 * 1024

// ValidationError blocks submission before anything reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Image is a validated photo ready for upload
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Collector gathers what the user picked and gates the analyze action
type Collector struct {
	Crop     string
	Advisor  string
	Symptoms string

	// AllowedCrops, when set, restricts Crop to the listed names.
	AllowedCrops []string
	// Compress downscales the photo before upload.
	Compress     bool
	MaxDimension int

	image *Image
}

func NewCollector() *Collector {
	return &Collector{MaxDimension: DefaultMaxDimension}
}

// SetImage validates and stores a photo. An invalid photo leaves any
// previously selected one in place.
func (c *Collector) SetImage(name string, data []byte) error {
	if len(data) == 0 {
		return &ValidationError{Field: "image", Message: "Please select an image first."}
	}
	if len(data) > MaxImageBytes {
		return &ValidationError{Field: "image", Message: "Image size should be less than 10MB."}
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return &ValidationError{Field: "image", Message: "Please select a valid image file."}
	}

	c.image = &Image{Name: filepath.Base(name), ContentType: contentType, Data: data}
	return nil
}

// LoadImage reads at most one byte past the size limit from r.
func (c *Collector) LoadImage(name string, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return fmt.Errorf("read image %s: %w", name, err)
	}
	return c.SetImage(name, data)
}

func (c *Collector) LoadImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ValidationError{Field: "image", Message: fmt.Sprintf("Image file %s does not exist.", path)}
		}
		return fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		return &ValidationError{Field: "image", Message: "Please select a valid image file."}
	}
	if info.Size() > MaxImageBytes {
		return &ValidationError{Field: "image", Message: "Image size should be less than 10MB."}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return c.LoadImage(path, f)
}

func (c *Collector) ClearImage() {
	c.image = nil
}

func (c *Collector) Image() *Image {
	return c.image
}

// Ready reports whether the analyze action may be enabled.
func (c *Collector) Ready() bool {
	return c.image != nil && strings.TrimSpace(c.Crop) != ""
}

// Hint says what is still missing, empty when Ready.
func (c *Collector) Hint() string {
	switch {
	case strings.TrimSpace(c.Crop) == "":
		return "Please select a crop to begin"
	case c.image == nil:
		return "Please upload an image to start analysis"
	}
	return ""
}

// Build turns the collected input into an image analysis request.
func (c *Collector) Build() (*model.AnalysisRequest, error) {
	crop := strings.TrimSpace(c.Crop)
	if crop == "" {
		return nil, &ValidationError{Field: "crop", Message: "Please select a crop before analyzing."}
	}
	if len(c.AllowedCrops) > 0 && !contains(c.AllowedCrops, crop) {
		return nil, &ValidationError{Field: "crop", Message: fmt.Sprintf("Unsupported crop %q (choose one of: %s).", crop, strings.Join(c.AllowedCrops, ", "))}
	}
	if c.image == nil {
		return nil, &ValidationError{Field: "image", Message: "Please select an image first."}
	}

	img := *c.image
	if c.Compress {
		data, err := Downscale(img.Data, c.MaxDimension)
		if err != nil {
			return nil, fmt.Errorf("compress image: %w", err)
		}
		img.Data = data
		img.ContentType = "image/jpeg"
		img.Name = strings.TrimSuffix(img.Name, filepath.Ext(img.Name)) + ".jpg"
	}

	return &model.AnalysisRequest{
		InputKind:        model.InputImage,
		CropType:         crop,
		Advisor:          strings.TrimSpace(c.Advisor),
		ImagePayload:     img.Data,
		ImageName:        img.Name,
		ImageContentType: img.ContentType,
		Symptoms:         strings.TrimSpace(c.Symptoms),
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
