package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/helmcode/cropdoc/pkg/backend"
	"github.com/helmcode/cropdoc/pkg/config"
	"github.com/helmcode/cropdoc/pkg/formatter"
	"github.com/helmcode/cropdoc/pkg/input"
	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/thumbnail"
	"github.com/helmcode/cropdoc/pkg/workflow"
)

var (
	crop         string
	advisor      string
	symptoms     string
	compress     bool
	interactive  bool
	outputFormat string
)

func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Diagnose a crop disease from a photo",
		Long: `Send a crop photo to the diagnosis service and show the result.

When the service is not confident it lists the most likely diseases; pick one
with --interactive or run "cropdoc select" afterwards.

Examples:
  # Diagnose a mango leaf
  cropdoc analyze leaf.jpg --crop Mango

  # Ask a specific advisor and describe what you see
  cropdoc analyze leaf.jpg -c Mango -a "Dr. Crop Expert" -s "black spots on young leaves"

  # Shrink a large photo before upload and pick a candidate interactively
  cropdoc analyze big.jpg -c Mango --compress -i

  # Use a pretrained classifier first
  cropdoc analyze leaf.jpg -c Mango --model-url http://localhost:9000/predict`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVarP(&crop, "crop", "c", "", "Crop type (e.g. Mango)")
	cmd.Flags().StringVarP(&advisor, "advisor", "a", "", "SME advisor to consult")
	cmd.Flags().StringVarP(&symptoms, "symptoms", "s", "", "Symptoms you observed")
	cmd.Flags().BoolVar(&compress, "compress", false, "Fix orientation and downscale the photo before upload")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick a candidate when the diagnosis is uncertain")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().String("model-url", "", "Pretrained classifier endpoint")
	_ = v.BindPFlag(config.KeyModelURL, cmd.Flags().Lookup("model-url"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := newService()
	if err != nil {
		return err
	}

	collector := input.NewCollector()
	collector.Crop = crop
	collector.Advisor = advisor
	collector.Symptoms = symptoms
	collector.Compress = compress
	collector.AllowedCrops = backend.NewCatalog(svc).Crops(ctx)

	if err := collector.LoadImageFile(args[0]); err != nil {
		return validationFailed(err)
	}
	req, err := collector.Build()
	if err != nil {
		return validationFailed(err)
	}

	printHeader(req)

	s := newSpinner("Analyzing disease in your crop image...")
	ctrl := workflow.New(svc, nil, workflow.Options{
		StatusInterval:   settings.StatusInterval,
		OnStatus:         func(msg string) { setSuffix(s, msg) },
		Thumbnails:       thumbnail.NewLoader(settings.Timeout),
		Predictor:        newPredictor(),
		PredictThreshold: settings.ModelThreshold,
	})

	s.Start()
	res := ctrl.RunAnalysis(ctx, req)
	s.Stop()
	failed := reportOutcome(res)

	if res.Kind == model.KindUncertain {
		s = newSpinner("Loading reference images...")
		s.Start()
		ctrl.LoadThumbnails(ctx)
		s.Stop()
	}

	if err := formatter.DisplayResults(os.Stdout, res, req, outputFormat, ctrl.State().Thumbnails().Snapshot()); err != nil {
		return err
	}
	if failed != nil || !interactive || res.Kind != model.KindUncertain {
		return failed
	}

	name, ok := promptCandidate(os.Stdin, os.Stderr, res.Candidates)
	if !ok {
		return nil
	}

	s = newSpinner(fmt.Sprintf("Getting information for %s...", name))
	s.Start()
	picked, err := ctrl.SelectCandidate(ctx, name)
	s.Stop()
	if err != nil {
		return err
	}
	failed = reportOutcome(picked)
	if err := formatter.DisplayResults(os.Stdout, picked, ctrl.State().LastRequest(), outputFormat, nil); err != nil {
		return err
	}
	return failed
}

func printHeader(req *model.AnalysisRequest) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(os.Stderr)
	cyan.Fprintln(os.Stderr, "🌿 Crop Disease Diagnosis")
	fmt.Fprintf(os.Stderr, "🌱 Crop: %s\n", req.CropType)
	if req.Advisor != "" {
		fmt.Fprintf(os.Stderr, "🧑‍🌾 Advisor: %s\n", req.Advisor)
	}
	if req.ImageName != "" {
		fmt.Fprintf(os.Stderr, "📷 Image: %s (%d KB)\n", req.ImageName, len(req.ImagePayload)/1024)
	}
	if req.SelectedDiseaseName != "" {
		fmt.Fprintf(os.Stderr, "🔬 Disease: %s\n", req.SelectedDiseaseName)
	}
	fmt.Fprintln(os.Stderr)
}
