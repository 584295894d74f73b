// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package cmd implements the monomaker CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monomaker/monomaker/internal/orchestrator"
	"github.com/monomaker/monomaker/pkg/cliutil"
)

var (
	appVersion string

	verbose bool
	quiet   bool

	// exitCode is set by whichever RunE ran and read back by Execute, since
	// cobra itself has no notion of the process exit codes spec §6 names.
	exitCode = orchestrator.ExitSuccess
)

var rootCmd = &cobra.Command{
	Use:   "monomaker <metarepo_path>",
	Short: "Convert a meta-repository into a history-preserving monorepo",
	Long: `monomaker converts a meta-repository — a repo whose children are first-layer
submodules — into a single monorepo that preserves the history of every
branch that matters across the meta-repo and its submodules.
` + cliutil.QuickStartHelp(`  # Convert a meta-repo, using its submodules' own branches where present
  monomaker ./my-meta-repo --workspace ./out

  # Restrict synthesis to a subset of branches
  monomaker ./my-meta-repo --branches-whitelist whitelist.json

  # Build a whitelist interactively instead of hand-writing it
  monomaker wizard ./my-meta-repo`),
	Version: appVersion,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRoot,
}

// Execute runs the root command and returns the process exit code (spec
// §6): 0 success, 2 usage error, 3 partial success, 4 fatal, 130 cancelled.
func Execute(version string) int {
	appVersion = version
	rootCmd.Version = version

	rootCmd.SetUsageTemplate(usageTemplate)
	setCommandGroups(rootCmd)
	applyUsageTemplateRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == orchestrator.ExitSuccess {
			exitCode = orchestrator.ExitUsageError
		}
	}
	return exitCode
}

func setCommandGroups(cmd *cobra.Command) {
	coreGroup := &cobra.Group{ID: "core", Title: cliutil.ColorYellowBold + "Core" + cliutil.ColorReset}
	toolGroup := &cobra.Group{ID: "tool", Title: cliutil.ColorYellowBold + "Additional Tools" + cliutil.ColorReset}
	cmd.AddGroup(coreGroup, toolGroup)

	for _, c := range cmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" || c.Name() == "version" {
			continue
		}
		switch c.Name() {
		case "wizard":
			c.GroupID = toolGroup.ID
		default:
			c.GroupID = coreGroup.ID
		}
	}
}

func applyUsageTemplateRecursive(cmd *cobra.Command) {
	cmd.SetUsageTemplate(usageTemplate)
	// Cobra does not propagate SilenceUsage/SilenceErrors to child commands.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	for _, c := range cmd.Commands() {
		applyUsageTemplateRecursive(c)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

const usageTemplate = `{{if .Runnable}}` + cliutil.ColorGreenBold + `Usage:` + cliutil.ColorReset + `
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}` + cliutil.ColorGreenBold + `Usage:` + cliutil.ColorReset + `
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

` + cliutil.ColorGreenBold + `Examples:` + cliutil.ColorReset + `
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

` + cliutil.ColorMagentaBold + `Additional Commands:` + cliutil.ColorReset + `{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

` + cliutil.ColorGreenBold + `Flags:` + cliutil.ColorReset + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

` + cliutil.ColorGreenBold + `Global Flags:` + cliutil.ColorReset + `
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
