package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/thumbnail"
)

const maxSimilar = 3

// DisplayResults formats and writes an analysis result. req is the request
// res answers and thumbs the reference image states; both may be nil.
func DisplayResults(w io.Writer, res *model.AnalysisResult, req *model.AnalysisRequest, format string, thumbs map[int]thumbnail.State) error {
	if res == nil {
		return fmt.Errorf("no result to display")
	}
	switch format {
	case "json":
		return displayJSON(w, res)
	case "yaml":
		return displayYAML(w, res)
	case "human", "":
		displayHuman(w, res, req, thumbs)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, yaml)", format)
	}
}

// rawText is the raw payload as a string when it is not valid JSON.
func rawText(res *model.AnalysisResult) (string, bool) {
	if res.Kind != model.KindRaw || len(res.Raw) == 0 || json.Valid(res.Raw) {
		return "", false
	}
	return string(res.Raw), true
}

func displayJSON(w io.Writer, res *model.AnalysisResult) error {
	out := *res
	if text, ok := rawText(res); ok {
		quoted, err := json.Marshal(text)
		if err != nil {
			return err
		}
		out.Raw = quoted
	}
	output, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

type yamlResult struct {
	model.AnalysisResult `yaml:",inline"`
	Raw                  any `yaml:"raw,omitempty"`
}

func displayYAML(w io.Writer, res *model.AnalysisResult) error {
	out := yamlResult{AnalysisResult: *res}
	if len(res.Raw) > 0 {
		var decoded any
		if err := json.Unmarshal(res.Raw, &decoded); err == nil {
			out.Raw = decoded
		} else {
			out.Raw = string(res.Raw)
		}
	}
	output, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(output))
	return err
}

func displayHuman(w io.Writer, res *model.AnalysisResult, req *model.AnalysisRequest, thumbs map[int]thumbnail.State) {
	fmt.Fprintln(w)

	switch res.Kind {
	case model.KindConfident:
		displayDiagnosis(w, res.Diagnosis)
	case model.KindUncertain:
		displayCandidates(w, res.Candidates, req, thumbs)
	case model.KindPartialFailure:
		displayFailure(w, res.Failure)
	default:
		displayRaw(w, res.Raw)
	}

	fmt.Fprintln(w, strings.Repeat("─", 80))
	fmt.Fprintf(w, "💡 %s\n", color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func displayDiagnosis(w io.Writer, info *model.DiseaseInfo) {
	green := color.New(color.FgGreen, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	if info == nil {
		info = &model.DiseaseInfo{}
	}
	name := info.Name
	if name == "" {
		name = "Unknown disease"
	}
	green.Fprintf(w, "✅ DIAGNOSIS: %s\n", name)
	if info.Confidence > 0 {
		fmt.Fprintf(w, "   Confidence: %s\n", model.Percent(info.Confidence))
	}
	fmt.Fprintln(w)

	sections := []struct{ title, body string }{
		{"🔎 SYMPTOMS:", info.Symptoms},
		{"💊 TREATMENT:", info.Treatment},
		{"🛡️  PREVENTION:", info.Prevention},
		{"📄 ADDITIONAL INFORMATION:", info.AdditionalInfo},
	}
	for _, s := range sections {
		if strings.TrimSpace(s.body) == "" {
			continue
		}
		cyan.Fprintln(w, s.title)
		fmt.Fprintln(w, wrapText(s.body, 80, "   "))
		fmt.Fprintln(w)
	}

	if len(info.SourceDocuments) > 0 {
		cyan.Fprintln(w, "📚 SOURCES:")
		for _, src := range info.SourceDocuments {
			fmt.Fprintf(w, "   • %s\n", src)
		}
		fmt.Fprintln(w)
	}
}

func displayCandidates(w io.Writer, candidates []model.CandidateDisease, req *model.AnalysisRequest, thumbs map[int]thumbnail.State) {
	yellow := color.New(color.FgYellow, color.Bold)

	yellow.Fprintln(w, "🤔 UNCERTAIN DIAGNOSIS - select the closest match:")
	fmt.Fprintln(w)
	for i, c := range candidates {
		fmt.Fprintf(w, "   %d. %s %s\n", i+1, c.Name, color.YellowString("(%s match)", model.Percent(c.Confidence)))
		if c.Description != "" {
			fmt.Fprintln(w, wrapText(c.Description, 80, "      "))
		}
		fmt.Fprintf(w, "      %s\n", referenceLine(c, thumbs[i]))
		fmt.Fprintln(w)
	}
	if len(candidates) > 0 {
		fmt.Fprintf(w, "👉 Get details with %s\n", color.CyanString("%s", selectHint(candidates[0].Name, req)))
	}
}

// selectHint is the select command that re-enters with the crop and advisor
// of the original request.
func selectHint(name string, req *model.AnalysisRequest) string {
	if req == nil || req.CropType == "" {
		return fmt.Sprintf("cropdoc select %q --crop <crop>", name)
	}
	hint := fmt.Sprintf("cropdoc select %q --crop %q", name, req.CropType)
	if req.Advisor != "" {
		hint += fmt.Sprintf(" --advisor %q", req.Advisor)
	}
	return hint
}

func referenceLine(c model.CandidateDisease, state thumbnail.State) string {
	if !c.HasReferenceImage {
		return color.HiBlackString("No reference image")
	}
	switch state {
	case thumbnail.StateLoaded:
		return "🖼️  " + c.ReferenceImageURL
	case thumbnail.StateError:
		return color.RedString("Reference image unavailable")
	case thumbnail.StateLoading:
		return color.HiBlackString("Loading reference image...")
	default:
		return c.ReferenceImageURL
	}
}

func displayFailure(w io.Writer, f *model.PartialFailure) {
	if f == nil {
		f = &model.PartialFailure{Message: model.GenericNetworkMessage}
	}
	if f.Kind != model.FailureIncomplete {
		color.New(color.FgRed, color.Bold).Fprintln(w, "❌ ANALYSIS FAILED:")
		fmt.Fprintf(w, "   %s\n\n", f.Message)
		return
	}

	color.New(color.FgYellow, color.Bold).Fprintln(w, "⚠️  ANALYSIS INCOMPLETE:")
	fmt.Fprintln(w, wrapText(f.Message, 80, "   "))
	fmt.Fprintln(w)
	if f.Partial == nil {
		return
	}
	if c := f.Partial.Classification; c != nil {
		fmt.Fprintf(w, "   Most likely: %s %s\n", c.Name, color.YellowString("(%s)", model.Percent(c.Confidence)))
	}
	if len(f.Partial.SimilarDiseases) > 0 {
		fmt.Fprintln(w, "   Similar diseases:")
		similar := f.Partial.SimilarDiseases
		if len(similar) > maxSimilar {
			similar = similar[:maxSimilar]
		}
		for _, c := range similar {
			fmt.Fprintf(w, "   • %s (%s)\n", c.Name, model.Percent(c.Confidence))
		}
	}
	fmt.Fprintln(w)
}

func displayRaw(w io.Writer, raw []byte) {
	color.New(color.FgWhite, color.Bold).Fprintln(w, "📄 RAW RESPONSE:")
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "   ", "  "); err == nil {
		fmt.Fprintf(w, "   %s\n\n", buf.String())
		return
	}
	fmt.Fprintln(w, wrapText(string(raw), 80, "   "))
	fmt.Fprintln(w)
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else if currentLine == indent {
				currentLine += word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
