package workflow

import (
	"encoding/json"
	"strings"

	"github.com/helmcode/cropdoc/pkg/backend"
	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/parser"
)

// Interpret turns a service response into a result. Non-2xx responses
// become service failures carrying the server's message; a 2xx body that is
// not JSON at all is treated like a transport failure.
func Interpret(resp *backend.Response) *model.AnalysisResult {
	if !resp.IsSuccess() {
		return model.NewFailure(model.FailureService, errorMessage(resp.Body), nil)
	}
	if !json.Valid(resp.Body) && parser.Shape(resp.Body) == "raw" {
		return model.NewFailure(model.FailureTransport, model.GenericNetworkMessage, nil)
	}
	return parser.Classify(resp.Body)
}

// errorMessage pulls a human readable message out of an error body.
// FastAPI validation errors carry detail as a list of {msg} objects.
func errorMessage(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		switch v := doc[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case []any:
			var msgs []string
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					if s, ok := m["msg"].(string); ok && s != "" {
						msgs = append(msgs, s)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}
