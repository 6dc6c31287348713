package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helmcode/cropdoc/pkg/formatter"
	"github.com/helmcode/cropdoc/pkg/input"
	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/workflow"
)

func NewSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select DISEASE",
		Short: "Get details for a disease picked from an uncertain diagnosis",
		Long: `Ask the diagnosis service for symptoms, treatment and prevention of a
disease, usually one of the candidates listed by "cropdoc analyze".

Examples:
  cropdoc select "Gall Midge" --crop Mango
  cropdoc select Anthracnose -c Mango -a "Dr. Crop Expert" -o json`,
		Args: cobra.ExactArgs(1),
		RunE: runSelect,
	}

	cmd.Flags().StringVarP(&crop, "crop", "c", "", "Crop type the diagnosis was made for")
	cmd.Flags().StringVarP(&advisor, "advisor", "a", "", "SME advisor to consult")
	cmd.Flags().StringVarP(&symptoms, "symptoms", "s", "", "Symptoms you observed")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "human", "Output format (human, json, yaml)")

	return cmd
}

func runSelect(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(crop) == "" {
		return validationFailed(&input.ValidationError{Field: "crop", Message: "Please select a crop before analyzing."})
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	req := &model.AnalysisRequest{
		InputKind:           model.InputDiseaseSelection,
		CropType:            strings.TrimSpace(crop),
		Advisor:             strings.TrimSpace(advisor),
		SelectedDiseaseName: strings.TrimSpace(args[0]),
		Symptoms:            strings.TrimSpace(symptoms),
	}
	printHeader(req)

	s := newSpinner(fmt.Sprintf("Getting information for %s...", req.SelectedDiseaseName))
	ctrl := workflow.New(svc, nil, workflow.Options{
		StatusInterval: settings.StatusInterval,
		OnStatus:       func(msg string) { setSuffix(s, msg) },
	})

	s.Start()
	res := ctrl.RunAnalysis(cmd.Context(), req)
	s.Stop()
	failed := reportOutcome(res)

	if err := formatter.DisplayResults(os.Stdout, res, req, outputFormat, nil); err != nil {
		return err
	}
	return failed
}
