package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pkgdepend/internal/app"
)

type resolveOptions struct {
	ShowExternal  bool
	EchoManifest  bool
	ToStdout      bool
	SkipImage     bool
	Verbose       bool
	OutputDir     string
	ExternalFiles []string
	Suffix        string
	ImageIndex    string
	HopBudget     int
	Report        string
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [-EmoSv] [-d output_dir] [-e external_package_file]... [-s suffix] manifest_file...",
		Short: "Resolve generated file dependencies to package dependencies",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.ShowExternal, "show-external", "E", false, "List external dependencies the -e files do not name, and unused patterns")
	cmd.Flags().BoolVarP(&opts.EchoManifest, "echo-manifest", "m", false, "Echo the input manifest text instead of re-serializing it")
	cmd.Flags().BoolVarP(&opts.ToStdout, "stdout", "o", false, "Print resolved manifests to stdout")
	cmd.Flags().BoolVarP(&opts.SkipImage, "skip-image", "S", false, "Do not resolve against the installed image")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Keep pkg.debug.depend attributes")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "d", "", "Directory for resolved manifests")
	cmd.Flags().StringArrayVarP(&opts.ExternalFiles, "external", "e", nil, "File of expected external package patterns (repeatable)")
	cmd.Flags().StringVarP(&opts.Suffix, "suffix", "s", "", "Suffix for resolved manifest files (default .res)")
	cmd.Flags().StringVar(&opts.ImageIndex, "image-index", "", "Installed image index file (YAML or TOML)")
	cmd.Flags().IntVar(&opts.HopBudget, "hop-budget", 0, "Maximum link substitutions per dependency (default 64)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Write a diagnostics report (YAML, or text for .txt)")

	_ = viper.BindPFlag("resolve.output_dir", cmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("resolve.suffix", cmd.Flags().Lookup("suffix"))
	_ = viper.BindPFlag("image_index", cmd.Flags().Lookup("image-index"))
	_ = viper.BindPFlag("link_hop_budget", cmd.Flags().Lookup("hop-budget"))

	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, manifests []string, opts resolveOptions) error {
	service := newAppService()
	service.Stdout = cmd.OutOrStdout()
	req := app.ResolveRequest{
		ManifestPaths: manifests,
		ToStdout:      opts.ToStdout,
		EchoManifest:  opts.EchoManifest,
		SkipImage:     opts.SkipImage,
		Verbose:       opts.Verbose,
		ExternalFiles: opts.ExternalFiles,
		ShowExternal:  opts.ShowExternal,
		ImageIndex:    resolveString(cmd, opts.ImageIndex, "image_index", "image-index"),
		HopBudget:     resolveInt(cmd, opts.HopBudget, "link_hop_budget", "hop-budget"),
		ReportPath:    opts.Report,
	}
	if !opts.ToStdout {
		req.OutputDir = resolveString(cmd, opts.OutputDir, "resolve.output_dir", "output-dir")
		req.Suffix = resolveString(cmd, opts.Suffix, "resolve.suffix", "suffix")
	} else {
		req.OutputDir = opts.OutputDir
		req.Suffix = opts.Suffix
	}
	result, err := service.Resolve(ctx, req)
	printDiagnostics(cmd.ErrOrStderr(), result.Diagnostics)
	if opts.ShowExternal && !result.Fatal {
		printExternal(cmd.OutOrStdout(), result)
	}
	return err
}

// printExternal lists external packages the -e files did not name and
// the patterns nothing depended on.
func printExternal(out io.Writer, result app.ResolveResult) {
	if len(result.UnlistedExternal) > 0 {
		fmt.Fprintln(out, "The following external packages were depended on but not listed:")
		for _, name := range result.UnlistedExternal {
			fmt.Fprintln(out, "\t"+name)
		}
	}
	if len(result.UnusedFMRIs) > 0 {
		fmt.Fprintln(out, "The following listed packages were not depended on:")
		for _, pattern := range result.UnusedFMRIs {
			fmt.Fprintln(out, "\t"+pattern)
		}
	}
}
