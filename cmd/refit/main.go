package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/zen-systems/refit/pkg/adapter"
	"github.com/zen-systems/refit/pkg/agent"
	"github.com/zen-systems/refit/pkg/config"
	"github.com/zen-systems/refit/pkg/evidence"
	"github.com/zen-systems/refit/pkg/githost"
	"github.com/zen-systems/refit/pkg/pipeline"
	"github.com/zen-systems/refit/pkg/progress"
	"github.com/zen-systems/refit/pkg/scan"
	"github.com/zen-systems/refit/pkg/staging"
	"github.com/zen-systems/refit/pkg/verify"
)

const version = "0.3.0"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "refit",
		Short: "LLM-driven code modernization pipeline",
		Long: `Refit scans a repository for outdated syntax and deprecated API usage,
	rewrites the flagged files with an LLM, verifies every rewrite against its
	original with a bounded repair loop, and materializes the accepted changes
	as a branch and pull request.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.refit/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var dryRun bool
	var stagingBase string
	var evidenceDir string
	var baseBranch string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run [repository]",
		Short: "Modernize a repository and open a pull request",
		Long: `Runs the full pipeline against a repository.

	The argument is either a hosted repository URL (cloned into a private
	staging area) or a local directory (copied into the staging area; the
	original is never touched).

	With --dry-run the accepted changes are reported but nothing is pushed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			adapters, err := createAdapters(cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapters: %w", err)
			}

			roles, err := resolveRoles(adapters, cfg.Roles)
			if err != nil {
				return err
			}

			bus := progress.NewBus(256)
			defer bus.Close()
			if !quiet {
				unsubscribe := bus.Subscribe(func(e progress.Event) {
					fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Status, e.Message)
				})
				defer unsubscribe()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if stagingBase == "" {
				stagingBase = filepath.Join(os.TempDir(), "refit-staging")
			}
			area, err := staging.NewArea(afero.NewOsFs(), stagingBase)
			if err != nil {
				return err
			}
			defer area.Remove()

			host := githost.NewExecHost(cfg.GitHubToken)
			host.Logf = log.Printf

			var repo githost.Repo
			isRemote := isRepoURL(target)
			if isRemote {
				repo, err = parseRepo(target)
				if err != nil {
					return err
				}
				repo.BaseBranch = baseBranch
				log.Printf("Cloning %s", repo.URL)
				if err := host.Clone(ctx, repo, area.Root); err != nil {
					return fmt.Errorf("clone failed: %w", err)
				}
			} else {
				if err := area.ImportTree(target); err != nil {
					return fmt.Errorf("failed to stage %s: %w", target, err)
				}
			}

			if evidenceDir == "" {
				evidenceDir = filepath.Join(cfg.ConfigDir, "evidence")
			}
			ev, err := evidence.NewWriter(evidenceDir)
			if err != nil {
				return fmt.Errorf("failed to create evidence writer: %w", err)
			}

			verifier := &agent.Verifier{
				Validator: roles.validator,
				Analyzer:  roles.analyzer,
				Fixer:     roles.fixer,
			}
			runner := &pipeline.Runner{
				Scanner: scan.New(),
				Reader:  &agent.Reader{Role: roles.reader, Bus: bus},
				Writer:  &agent.Writer{Role: roles.writer, Bus: bus},
				Verifier: &verify.Loop{
					Validator: verifier,
					Analyzer:  verifier,
					Repairer:  verifier,
					Policy: verify.Policy{
						MaxRetries:         cfg.Run.MaxRetries,
						SoftPassThreshold:  cfg.Run.SoftPassThreshold,
						FallbackConfidence: cfg.Run.FallbackConfidence,
					},
					Bus:  bus,
					Logf: log.Printf,
				},
				Tuning: pipeline.Tuning{
					DiscoverConcurrency: cfg.Run.DiscoverConcurrency,
					RewriteConcurrency:  cfg.Run.RewriteConcurrency,
					VerifyConcurrency:   cfg.Run.VerifyConcurrency,
					JobTimeout:          cfg.Run.JobTimeout,
				},
				Evidence:   ev,
				Repository: target,
				Logf:       log.Printf,
			}

			result, err := runner.Run(ctx, area.Root)
			if err != nil {
				return err
			}

			printSummary(result, ev.RunDir())
			if len(result.Accepted) == 0 {
				return nil
			}

			changes := make([]staging.FileChange, 0, len(result.Accepted))
			for _, cs := range result.Accepted {
				changes = append(changes, staging.FileChange{Path: cs.Path, Content: cs.Final})
			}
			if _, err := area.Apply(changes, log.Printf); err != nil {
				return fmt.Errorf("failed to apply changes: %w", err)
			}

			if dryRun || !isRemote {
				if isRemote {
					fmt.Fprintln(os.Stderr, "Dry run: skipping branch and pull request.")
				} else {
					fmt.Fprintln(os.Stderr, "Local target: results recorded in evidence; no branch or pull request.")
				}
				return nil
			}

			hostChanges := make([]githost.Change, 0, len(result.Accepted))
			for _, cs := range result.Accepted {
				hostChanges = append(hostChanges, githost.Change{Path: cs.Path, Content: cs.Final})
			}
			pr, err := host.Materialize(ctx, repo, hostChanges)
			if err != nil {
				// The run itself succeeded; the evidence records survive.
				return fmt.Errorf("materialization failed (results kept in %s): %w", ev.RunDir(), err)
			}

			fmt.Printf("Opened %s (branch %s)\n", pr.URL, pr.Branch)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the pipeline without pushing a branch or opening a PR")
	cmd.Flags().StringVar(&stagingBase, "staging", "", "staging directory (default under the system temp dir)")
	cmd.Flags().StringVar(&evidenceDir, "out", "", "evidence output base directory (default ~/.refit/evidence)")
	cmd.Flags().StringVar(&baseBranch, "base", "", "pull-request base branch (default main)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-file progress output")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available adapters and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			adapters, err := createAdapters(cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapters: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, provider := range []string{"anthropic", "openai", "google", "deepseek", "mock"} {
				status := "no key"
				models := ""
				if a, ok := adapters[provider]; ok {
					status = "ready"
					models = strings.Join(a.Models(), ", ")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, models, status)
			}
			return w.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the refit version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("refit %s\n", version)
		},
	}
}

func printSummary(result *pipeline.Result, evidenceDir string) {
	verified := 0
	for _, cs := range result.Accepted {
		if cs.Verified {
			verified++
		}
	}
	fmt.Fprintf(os.Stderr, "Scanned %d files, %d candidates, %d accepted (%d verified), %d rejected.\n",
		result.Scanned, result.Candidates, len(result.Accepted), verified, result.RejectedCount)
	for _, cs := range result.Accepted {
		mark := "verified"
		if !cs.Verified {
			mark = "unverified"
		}
		fmt.Fprintf(os.Stderr, "  %s (%s, %d attempts)\n", cs.Path, mark, cs.Attempts)
	}
	fmt.Fprintf(os.Stderr, "Evidence: %s\n", evidenceDir)
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load()
}

type runRoles struct {
	reader    agent.Role
	writer    agent.Role
	validator agent.Role
	analyzer  agent.Role
	fixer     agent.Role
}

func resolveRoles(adapters map[string]adapter.Adapter, cfg config.RolesConfig) (*runRoles, error) {
	resolve := func(name string, rc config.RoleConfig) (agent.Role, error) {
		a, ok := adapters[rc.Adapter]
		if !ok {
			return agent.Role{}, fmt.Errorf("%s role needs adapter %q, but no API key is configured", name, rc.Adapter)
		}
		return agent.Role{Adapter: a, Model: rc.Model}, nil
	}

	var roles runRoles
	var err error
	if roles.reader, err = resolve("reader", cfg.Reader); err != nil {
		return nil, err
	}
	if roles.writer, err = resolve("writer", cfg.Writer); err != nil {
		return nil, err
	}
	if roles.validator, err = resolve("validator", cfg.Validator); err != nil {
		return nil, err
	}
	if roles.analyzer, err = resolve("analyzer", cfg.Analyzer); err != nil {
		return nil, err
	}
	if roles.fixer, err = resolve("fixer", cfg.Fixer); err != nil {
		return nil, err
	}
	return &roles, nil
}

func createAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	adapters["mock"] = adapter.NewMockAdapter()

	return adapters, nil
}

// isRepoURL distinguishes hosted repositories from local paths.
func isRepoURL(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "git@")
}

// parseRepo extracts owner and name from an HTTPS or SSH repository URL.
func parseRepo(url string) (githost.Repo, error) {
	trimmed := strings.TrimSuffix(url, ".git")

	var path string
	switch {
	case strings.HasPrefix(trimmed, "git@"):
		if i := strings.Index(trimmed, ":"); i >= 0 {
			path = trimmed[i+1:]
		}
	case strings.Contains(trimmed, "://"):
		rest := trimmed[strings.Index(trimmed, "://")+3:]
		if i := strings.Index(rest, "/"); i >= 0 {
			path = rest[i+1:]
		}
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return githost.Repo{}, fmt.Errorf("cannot parse owner/name from %q", url)
	}
	return githost.Repo{URL: url, Owner: parts[0], Name: parts[1]}, nil
}
