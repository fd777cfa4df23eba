package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/uigen/internal/config"
	"github.com/kalambet/uigen/internal/llm"
	"github.com/kalambet/uigen/internal/storage"
)

// --- generate ---

type generateResult struct {
	Plan        string `json:"plan"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	VersionID   string `json:"versionId"`
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate markup through a running server",
	Long: `Generate markup through a running server and save it as a new version.

The generated markup is written to stdout; plan and explanation go to stderr.

Examples:
  uigen generate --prompt "Create a login form"
  uigen generate --prompt "Add a cancel button" --code-file ./form.jsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		code, _ := cmd.Flags().GetString("code")
		codeFile, _ := cmd.Flags().GetString("code-file")

		if strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("--prompt is required")
		}
		if codeFile != "" {
			data, err := os.ReadFile(codeFile)
			if err != nil {
				return fmt.Errorf("reading code file: %w", err)
			}
			code = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := runGenerate(cmd.Context(), client, prompt, code)
		if err != nil {
			return err
		}

		printStatus("Plan", "%s", res.Plan)
		printStatus("Explanation", "%s", res.Explanation)
		printSuccess("Saved version %s", res.VersionID)
		fmt.Fprintln(cmd.OutOrStdout(), res.Code)
		return nil
	},
}

func init() {
	generateCmd.Flags().String("prompt", "", "what to build or change")
	generateCmd.Flags().String("code", "", "current markup to revise")
	generateCmd.Flags().String("code-file", "", "read current markup from a file")
	generateCmd.MarkFlagsMutuallyExclusive("code", "code-file")
}

func runGenerate(ctx context.Context, client *apiClient, prompt, code string) (generateResult, error) {
	resp, err := client.post(ctx, "/api/generate", map[string]string{
		"userPrompt":  prompt,
		"currentCode": code,
	})
	if err != nil {
		return generateResult{}, err
	}

	var res generateResult
	if err := decodeJSON(resp, &res); err != nil {
		return generateResult{}, err
	}
	return res, nil
}

// --- versions ---

var versionsCmd = &cobra.Command{
	Use:   "versions [id]",
	Short: "List recent versions, or print one as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.get(cmd.Context(), "/api/versions/"+url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			var v storage.Version
			if err := decodeJSON(resp, &v); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}

		resp, err := client.get(cmd.Context(), "/api/versions")
		if err != nil {
			return err
		}
		var versions []storage.Version
		if err := decodeJSON(resp, &versions); err != nil {
			return err
		}
		if len(versions) == 0 {
			printWarning("No versions yet")
			return nil
		}
		return printVersions(cmd.OutOrStdout(), versions)
	},
}

func printVersions(w io.Writer, versions []storage.Version) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPROMPT")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Timestamp.Local().Format(time.DateTime), truncate(oneLine(v.Prompt), 60))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model IDs the configured provider offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		printStatus("Base URL", "%s", cfg.LLM.BaseURL)
		printStatus("API key", "%s", maskKey(cfg.LLM.APIKey))

		client := llm.NewClient(llm.Options{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		ids, err := client.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}

		if output == "" {
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}

		if err := os.WriteFile(output, []byte(strings.Join(ids, "\n")), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		printSuccess("Wrote %d model IDs to %s", len(ids), output)
		return nil
	},
}

func init() {
	modelsCmd.Flags().StringP("output", "o", "", "write IDs to this file instead of stdout")
}

func maskKey(key string) string {
	if key == "" {
		return "MISSING"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "..."
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		if cfg.HasAPIKey() {
			printStatus("API key", "set")
		} else {
			printWarning("OPENAI_API_KEY is not set")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ValidKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
