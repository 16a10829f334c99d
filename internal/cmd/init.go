package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finmgr/finmgr/internal/config"
	"github.com/finmgr/finmgr/internal/templates"
)

func newInitCmd() *cobra.Command {
	var templateName string
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an Updatefile from a template",
		Long: `Create an Updatefile that configures the release feed and the updater.

Available templates:
  github        - Releases from GitHub (default)
  mirror        - Self-hosted release feed
  troubleshoot  - Verbose logs and patient retries

Examples:
  finmgr init                          # Choose a template interactively
  finmgr init --template=mirror
  finmgr init --path ./Updatefile.yaml # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template name")
	cmd.Flags().StringVar(&outputPath, "path", "", "Output path for the Updatefile")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing Updatefile")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	reader := bufio.NewReader(stdin)

	if outputPath == "" {
		outputPath = defaultUpdatefilePath()
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Updatefile already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(stdout, "Overwrite? [y/N]: ")
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if templateName == "" {
		selected, err := selectTemplate(reader, stdout)
		if err != nil {
			return err
		}
		templateName = selected
	}

	tmpl, err := templates.Get(templateName)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(outputPath), err)
	}
	if err := os.WriteFile(outputPath, tmpl.Content, 0644); err != nil {
		return fmt.Errorf("failed to write Updatefile: %w", err)
	}

	if _, err := config.Load(outputPath); err != nil {
		return fmt.Errorf("written Updatefile does not load: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Created %s from the '%s' template\n", outputPath, tmpl.Name)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Edit the Updatefile to point at your release feed")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'finmgr check' to query it")

	return nil
}

// selectTemplate shows a numbered menu. An empty answer picks the default.
func selectTemplate(reader *bufio.Reader, stdout io.Writer) (string, error) {
	names := templates.List()

	_, _ = fmt.Fprintln(stdout, "Select an Updatefile template:")
	for i, name := range names {
		_, _ = fmt.Fprintf(stdout, "  %d. %-12s - %s\n", i+1, name, templates.GetDescription(name))
	}
	_, _ = fmt.Fprintf(stdout, "Select [1-%d] (default %s): ", len(names), templates.DefaultName)

	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return templates.DefaultName, nil
	}

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(names) {
		return "", fmt.Errorf("invalid selection: %s", answer)
	}
	return names[num-1], nil
}

// defaultUpdatefilePath is the per-user location searched by the loader.
func defaultUpdatefilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "finmgr", "Updatefile.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "Updatefile.yaml"
	}
	return filepath.Join(home, ".config", "finmgr", "Updatefile.yaml")
}
