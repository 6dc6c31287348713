package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/helmcode/cropdoc/pkg/backend"
	"github.com/helmcode/cropdoc/pkg/classifier"
	"github.com/helmcode/cropdoc/pkg/config"
	"github.com/helmcode/cropdoc/pkg/input"
	"github.com/helmcode/cropdoc/pkg/metrics"
	"github.com/helmcode/cropdoc/pkg/model"
)

var (
	cfgFile  string
	v        = viper.New()
	settings *config.Config
)

// AddGlobalFlags registers the flags every command shares and binds them to
// their configuration keys.
func AddGlobalFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cropdoc.yaml)")
	flags.String("api-url", "", "Diagnosis service base URL")
	flags.String("variant", "", "Diagnosis service endpoint variant (A, B)")
	flags.Duration("timeout", 0, "Request timeout for the diagnosis service")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	_ = v.BindPFlag(config.KeyBaseURL, flags.Lookup("api-url"))
	_ = v.BindPFlag(config.KeyVariant, flags.Lookup("variant"))
	_ = v.BindPFlag(config.KeyTimeout, flags.Lookup("timeout"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
}

// Setup loads configuration and logging before any command runs.
func Setup(cmd *cobra.Command, args []string) error {
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	s, err := config.Load(v)
	if err != nil {
		return err
	}
	settings = s
	if err := config.SetupLogging(os.Stderr, settings.LogLevel, false); err != nil {
		return err
	}
	if id, err := config.SessionID(); err != nil {
		log.WithError(err).Debug("session id unavailable, calling the service anonymously")
	} else {
		settings.SessionID = id
	}
	return nil
}

func newService() (backend.Service, error) {
	svc, err := backend.New(settings.Backend())
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnosis client: %w", err)
	}
	return svc, nil
}

// newPredictor returns the pretrained model client when one is configured.
func newPredictor() classifier.Predictor {
	if settings.ModelURL == "" {
		return nil
	}
	return classifier.NewHTTPPredictor(settings.ModelURL, settings.Timeout)
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	return s
}

// setSuffix updates a running spinner from another goroutine.
func setSuffix(s *spinner.Spinner, msg string) {
	s.Lock()
	s.Suffix = " " + msg
	s.Unlock()
}

func printSuccess(msg string) {
	green := color.New(color.FgGreen)
	green.Fprintf(os.Stderr, "✓ %s\n", msg)
}

func printError(msg string) {
	red := color.New(color.FgRed)
	red.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// validationFailed reports a pre-flight error and returns it for the exit code.
func validationFailed(err error) error {
	var ve *input.ValidationError
	if errors.As(err, &ve) {
		metrics.ValidationRejectedTotal.WithLabelValues(ve.Field).Inc()
	}
	printError(err.Error())
	return err
}

var errAnalysisFailed = errors.New("analysis failed")

// reportOutcome prints a one-line summary and returns an error when the
// service could not be used at all.
func reportOutcome(res *model.AnalysisResult) error {
	switch res.Kind {
	case model.KindConfident:
		printSuccess("Diagnosis complete")
	case model.KindUncertain:
		printSuccess(fmt.Sprintf("Found %d possible diseases", len(res.Candidates)))
	case model.KindRaw:
		printSuccess("Received an unrecognised response")
	case model.KindPartialFailure:
		if res.Failure.Kind == model.FailureIncomplete {
			printError("Analysis finished with partial results")
			return nil
		}
		printError(res.Failure.Message)
		return errAnalysisFailed
	}
	return nil
}
