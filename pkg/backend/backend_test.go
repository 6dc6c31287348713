package backend_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/cropdoc/pkg/backend"
	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/parser"
	"github.com/helmcode/cropdoc/pkg/stub"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newStubService(t *testing.T, variant backend.Variant) (backend.Service, *stub.Server) {
	t.Helper()
	s := stub.New(stub.Options{})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	svc, err := backend.New(backend.Config{BaseURL: ts.URL, Variant: variant, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return svc, s
}

func imageRequest() *model.AnalysisRequest {
	return &model.AnalysisRequest{
		InputKind:        model.InputImage,
		CropType:         "Mango",
		Advisor:          "Dr. Crop Expert",
		ImagePayload:     []byte("\x89PNG fake"),
		ImageName:        "leaf.png",
		ImageContentType: "image/png",
	}
}

func TestParseVariant(t *testing.T) {
	v, err := backend.ParseVariant("b")
	require.NoError(t, err)
	assert.Equal(t, backend.VariantB, v)

	v, err = backend.ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, backend.VariantA, v)

	_, err = backend.ParseVariant("c")
	assert.Error(t, err)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := backend.New(backend.Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	svc, _ := newStubService(t, backend.VariantA)

	status, err := svc.Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
}

func TestNew_SendsSessionID(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(backend.HeaderSessionID))
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	}))
	defer ts.Close()

	svc, err := backend.New(backend.Config{BaseURL: ts.URL, SessionID: "3f0c6c1e-6f3e-4a4b-9a51-1d2b7c7e0a11"})
	require.NoError(t, err)
	_, err = svc.Health(context.Background())
	require.NoError(t, err)

	anon, err := backend.New(backend.Config{BaseURL: ts.URL})
	require.NoError(t, err)
	_, err = anon.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"3f0c6c1e-6f3e-4a4b-9a51-1d2b7c7e0a11", ""}, got)
}

func TestVariantA_SubmitImageSendsMultipart(t *testing.T) {
	var gotCrop, gotAdvisor, gotFile string
	var gotBytes []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.PathGiveImage, r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotCrop = r.FormValue("cropType")
		gotAdvisor = r.FormValue("smeAdvisor")
		f, hdr, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		gotFile = hdr.Filename
		gotBytes, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	svc, err := backend.New(backend.Config{BaseURL: ts.URL, Variant: backend.VariantA})
	require.NoError(t, err)

	resp, err := svc.SubmitImage(context.Background(), imageRequest())

	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "Mango", gotCrop)
	assert.Equal(t, "Dr. Crop Expert", gotAdvisor)
	assert.Equal(t, "leaf.png", gotFile)
	assert.Equal(t, []byte("\x89PNG fake"), gotBytes)
}

func TestVariantB_SubmitImageSendsBase64JSON(t *testing.T) {
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.PathAnalyzeDisease, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, `{}`)
	}))
	defer ts.Close()

	svc, err := backend.New(backend.Config{BaseURL: ts.URL, Variant: backend.VariantB})
	require.NoError(t, err)

	req := imageRequest()
	req.Advisor = ""
	_, err = svc.SubmitImage(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(req.ImagePayload), payload["image_data"])
	assert.Equal(t, "Mango", payload["crop_type"])
	assert.Contains(t, payload, "sme_advisor")
	assert.Nil(t, payload["sme_advisor"])
}

func TestSubmitImage_AgainstStub(t *testing.T) {
	for _, variant := range []backend.Variant{backend.VariantA, backend.VariantB} {
		t.Run(string(variant), func(t *testing.T) {
			svc, s := newStubService(t, variant)

			resp, err := svc.SubmitImage(context.Background(), imageRequest())

			require.NoError(t, err)
			require.True(t, resp.IsSuccess(), string(resp.Body))
			res := parser.Classify(resp.Body)
			require.Equal(t, model.KindUncertain, res.Kind)
			assert.Len(t, res.Candidates, 5)
			assert.Equal(t, 1, s.Uploads())
		})
	}
}

func TestConfirmDisease_AgainstStub(t *testing.T) {
	cases := map[backend.Variant]string{
		backend.VariantA: backend.PathConfirmDisease,
		backend.VariantB: backend.PathGetDiseaseInfo,
	}
	for variant, path := range cases {
		t.Run(string(variant), func(t *testing.T) {
			svc, s := newStubService(t, variant)

			req := imageRequest().SelectionFor("Gall Midge")
			resp, err := svc.ConfirmDisease(context.Background(), req)

			require.NoError(t, err)
			require.True(t, resp.IsSuccess(), string(resp.Body))
			res := parser.Classify(resp.Body)
			require.Equal(t, model.KindConfident, res.Kind)
			assert.Equal(t, "Gall Midge", res.Diagnosis.Name)

			sel := s.Selections()
			require.Len(t, sel, 1)
			assert.Equal(t, path, sel[0].Endpoint)
			assert.Equal(t, "Mango", sel[0].CropType)
			assert.Equal(t, "Dr. Crop Expert", sel[0].Advisor)
		})
	}
}

func TestSubmitImage_NonSuccessIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"model unavailable"}`)
	}))
	defer ts.Close()

	svc, err := backend.New(backend.Config{BaseURL: ts.URL})
	require.NoError(t, err)

	resp, err := svc.SubmitImage(context.Background(), imageRequest())

	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"model unavailable"}`, string(resp.Body))
}

func TestSubmitImage_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	svc, err := backend.New(backend.Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = svc.SubmitImage(context.Background(), imageRequest())
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	t.Run("variant A falls back", func(t *testing.T) {
		svc, _ := newStubService(t, backend.VariantA)
		cat := backend.NewCatalog(svc)

		assert.Equal(t, backend.DefaultCrops, cat.Crops(context.Background()))
		assert.Equal(t, backend.DefaultAdvisors, cat.Advisors(context.Background()))
	})

	t.Run("variant B lists from backend", func(t *testing.T) {
		svc, _ := newStubService(t, backend.VariantB)
		cat := backend.NewCatalog(svc)

		assert.Equal(t, []string{"Mango"}, cat.Crops(context.Background()))
		assert.Equal(t, []string{"Dr. Plant Pathologist", "Dr. Crop Expert", "Agricultural Specialist"}, cat.Advisors(context.Background()))
	})

	t.Run("variant B falls back on errors", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == backend.PathAvailableCrops {
				_, _ = io.WriteString(w, `{"available_crops":["Mango","Banana"]}`)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		svc, err := backend.New(backend.Config{BaseURL: ts.URL, Variant: backend.VariantB})
		require.NoError(t, err)
		cat := backend.NewCatalog(svc)

		assert.Equal(t, []string{"Mango", "Banana"}, cat.Crops(context.Background()))
		assert.Equal(t, backend.DefaultAdvisors, cat.Advisors(context.Background()))
	})
}
