// Package stub is a deterministic, no-model stand-in for the diagnosis
// service. It serves the endpoints of both backend variants with hard-coded
// results so the client can be demoed and tested without the real pipeline.
package stub

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/helmcode/cropdoc/pkg/backend"
)

// Scenario selects what image submissions return
type Scenario string

const (
	ScenarioUncertain  Scenario = "uncertain"
	ScenarioConfident  Scenario = "confident"
	ScenarioIncomplete Scenario = "incomplete"
)

// ParseScenario accepts a scenario name in any case, empty meaning uncertain.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScenarioUncertain, nil
	case ScenarioUncertain, ScenarioConfident, ScenarioIncomplete:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown scenario %q (supported: uncertain, confident, incomplete)", s)
	}
}

type Options struct {
	Scenario Scenario
	// Delay is applied to every diagnosis call to imitate pipeline latency.
	Delay time.Duration
}

// Selection records one disease confirmation the stub received.
type Selection struct {
	Endpoint string
	Disease  string
	CropType string
	Advisor  string
}

type Server struct {
	opts Options

	mu         sync.Mutex
	selections []Selection
	uploads    int
}

func New(opts Options) *Server {
	if opts.Scenario == "" {
		opts.Scenario = ScenarioUncertain
	}
	return &Server{opts: opts}
}

// Router builds the gin engine serving every stub endpoint
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(backend.PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "cropdoc-stub"})
	})
	r.POST(backend.PathGiveImage, s.giveImage)
	r.POST(backend.PathAnalyzeDisease, s.analyzeDisease)
	r.POST(backend.PathConfirmDisease, s.confirmDisease)
	r.POST(backend.PathGetDiseaseInfo, s.getDiseaseInfo)
	r.GET(backend.PathAvailableCrops, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"crops": supportedCrops})
	})
	r.GET(backend.PathAvailableAdvice, func(c *gin.Context) {
		c.JSON(http.StatusOK, advisors)
	})
	r.GET("/reference/:file", s.referenceImage)

	return r
}

// Selections returns the confirmations received so far.
func (s *Server) Selections() []Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Selection, len(s.selections))
	copy(out, s.selections)
	return out
}

// Uploads counts image submissions received on either variant.
func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

func (s *Server) giveImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No image uploaded"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unreadable image upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Empty image upload"})
		return
	}

	s.diagnose(c, c.PostForm("cropType"))
}

func (s *Server) analyzeDisease(c *gin.Context) {
	var req struct {
		ImageData string `json:"image_data"`
		CropType  string `json:"crop_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "image_data must be non-empty base64"})
		return
	}

	s.diagnose(c, req.CropType)
}

func (s *Server) diagnose(c *gin.Context, crop string) {
	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()

	if !s.wait(c) {
		return
	}
	if !isSupportedCrop(crop) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("Unsupported crop type: %s", crop)})
		return
	}

	log.WithFields(log.Fields{"crop": crop, "scenario": s.opts.Scenario}).Debug("stub diagnosis")

	switch s.opts.Scenario {
	case ScenarioConfident:
		c.JSON(http.StatusOK, gin.H{
			"status":       "confident_prediction",
			"disease_info": diseaseInfoJSON(mangoDiseases[0], 0.92),
		})
	case ScenarioIncomplete:
		c.JSON(http.StatusOK, gin.H{
			"status":  "processing_incomplete",
			"message": "Classification finished but disease information retrieval timed out.",
			"partial_results": gin.H{
				"classification":   candidateJSON(c, 0, mangoDiseases[0]),
				"similar_diseases": candidatesJSON(c)[1:],
			},
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":            "uncertain_prediction",
			"message":           "Unable to determine disease with confidence.",
			"top_possibilities": candidatesJSON(c),
		})
	}
}

func (s *Server) confirmDisease(c *gin.Context) {
	var req struct {
		DiseaseClass string  `json:"disease_class"`
		CropType     string  `json:"crop_type"`
		SMEAdvisor   *string `json:"sme_advisor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	d, ok := s.confirm(c, backend.PathConfirmDisease, req.DiseaseClass, req.CropType, req.SMEAdvisor)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "disease_info": diseaseInfoJSON(d, 1)})
}

func (s *Server) getDiseaseInfo(c *gin.Context) {
	var req struct {
		DiseaseName string  `json:"disease_name"`
		CropType    string  `json:"crop_type"`
		SMEAdvisor  *string `json:"sme_advisor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	d, ok := s.confirm(c, backend.PathGetDiseaseInfo, req.DiseaseName, req.CropType, req.SMEAdvisor)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confident_prediction", "text_rag_results": diseaseInfoJSON(d, 1)})
}

func (s *Server) confirm(c *gin.Context, endpoint, name, crop string, advisor *string) (disease, bool) {
	sel := Selection{Endpoint: endpoint, Disease: name, CropType: crop}
	if advisor != nil {
		sel.Advisor = *advisor
	}
	s.mu.Lock()
	s.selections = append(s.selections, sel)
	s.mu.Unlock()

	if !s.wait(c) {
		return disease{}, false
	}
	if !isSupportedCrop(crop) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("Unsupported crop type: %s", crop)})
		return disease{}, false
	}
	d, found := findDisease(name)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Disease not found: %s", name)})
		return disease{}, false
	}
	return d, true
}

// wait applies the configured delay; it reports false if the client went away.
func (s *Server) wait(c *gin.Context) bool {
	if s.opts.Delay <= 0 {
		return true
	}
	select {
	case <-time.After(s.opts.Delay):
		return true
	case <-c.Request.Context().Done():
		c.Abort()
		return false
	}
}

func (s *Server) referenceImage(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("file"), ".png")
	for _, d := range mangoDiseases {
		if slug(d.Name) == name {
			c.Data(http.StatusOK, "image/png", referencePNG)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "No reference image"})
}

func candidatesJSON(c *gin.Context) []gin.H {
	out := make([]gin.H, 0, len(mangoDiseases))
	for i, d := range mangoDiseases {
		out = append(out, candidateJSON(c, i, d))
	}
	return out
}

func candidateJSON(c *gin.Context, i int, d disease) gin.H {
	// The last entry has no reference photo.
	hasImage := i < len(mangoDiseases)-1
	h := gin.H{
		"disease_name": d.Name,
		"description":  d.Description,
		"confidence":   d.Confidence,
		"has_image":    hasImage,
	}
	if hasImage {
		h["image_url"] = fmt.Sprintf("%s/reference/%s.png", requestBase(c), slug(d.Name))
	}
	return h
}

func diseaseInfoJSON(d disease, confidence float64) gin.H {
	return gin.H{
		"disease_name":     d.Name,
		"symptoms":         d.Symptoms,
		"treatment":        d.Treatment,
		"prevention":       d.Prevention,
		"additional_info":  d.AdditionalInfo,
		"confidence_score": confidence,
		"source_documents": d.Sources,
	}
}

func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func isSupportedCrop(crop string) bool {
	for _, s := range supportedCrops {
		if equalFold(s, crop) {
			return true
		}
	}
	return false
}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
