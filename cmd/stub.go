package cmd

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/helmcode/cropdoc/pkg/stub"
)

var (
	stubAddr     string
	stubScenario string
	stubDelay    time.Duration
)

func NewStubBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stub-backend",
		Short: "Run a simulated diagnosis service with canned Mango results",
		Long: `Serve every endpoint of both backend variants with hard-coded data, for
demos and local development.

Scenarios:
  uncertain   image uploads return five candidate diseases (default)
  confident   image uploads return a single diagnosis
  incomplete  image uploads return processing_incomplete with partial results

Examples:
  cropdoc stub-backend --addr :8000
  cropdoc stub-backend --scenario confident --delay 5s`,
		Args: cobra.NoArgs,
		RunE: runStubBackend,
	}

	cmd.Flags().StringVar(&stubAddr, "addr", ":8000", "Listen address")
	cmd.Flags().StringVar(&stubScenario, "scenario", string(stub.ScenarioUncertain), "Response scenario (uncertain, confident, incomplete)")
	cmd.Flags().DurationVar(&stubDelay, "delay", 0, "Artificial processing delay per request")

	return cmd
}

func runStubBackend(cmd *cobra.Command, args []string) error {
	scenario, err := stub.ParseScenario(stubScenario)
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	s := stub.New(stub.Options{Scenario: scenario, Delay: stubDelay})

	printSuccess(fmt.Sprintf("Simulated diagnosis service on %s (scenario %s)", stubAddr, scenario))
	log.WithFields(log.Fields{"addr": stubAddr, "scenario": scenario, "delay": stubDelay}).Debug("starting stub backend")
	return listenAndServe(cmd.Context(), stubAddr, s.Router())
}
