package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/cropdoc/pkg/backend"
)

func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the diagnosis service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			s := newSpinner(fmt.Sprintf("Contacting %s...", settings.BaseURL))
			s.Start()
			status, err := svc.Health(cmd.Context())
			s.Stop()
			if err != nil {
				printError(fmt.Sprintf("Diagnosis service unreachable at %s", settings.BaseURL))
				return err
			}
			printSuccess(fmt.Sprintf("Diagnosis service is %s (variant %s, %s)", status, svc.Variant(), settings.BaseURL))
			return nil
		},
	}
}

func NewCropsCmd() *cobra.Command {
	return newListCmd("crops", "List the crops the diagnosis service supports", "crops",
		func(ctx context.Context, c *backend.Catalog) []string { return c.Crops(ctx) })
}

func NewAdvisorsCmd() *cobra.Command {
	return newListCmd("advisors", "List the SME advisors that can be consulted", "advisors",
		func(ctx context.Context, c *backend.Catalog) []string { return c.Advisors(ctx) })
}

func newListCmd(use, short, key string, list func(context.Context, *backend.Catalog) []string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ".\n\nFalls back to a built-in list when the service does not provide one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			return writeList(os.Stdout, key, list(cmd.Context(), backend.NewCatalog(svc)), format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "human", "Output format (human, json, yaml)")
	return cmd
}

func writeList(w io.Writer, key string, items []string, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]string{key: items})
	case "yaml":
		return yaml.NewEncoder(w).Encode(map[string][]string{key: items})
	case "human", "":
		for _, item := range items {
			fmt.Fprintf(w, "• %s\n", item)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, yaml)", format)
	}
}
