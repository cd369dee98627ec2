package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pkgdepend/internal/app"
	"pkgdepend/internal/core"
)

type generateOptions struct {
	KeepInternal   bool
	ListUnanalyzed bool
	EchoManifest   bool
	ProtoDirs      []string
	Tokens         []string
	RunPaths       []string
	Platform       string
	ISAList        []string
	Workers        int
	Report         string
}

func newGenerateCommand() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [-IMm] -d dir [-d dir]... [-D name=value]... [-k path]... manifest_file",
		Short: "Generate the file dependencies of a package manifest",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.KeepInternal, "keep-internal", "I", false, "Keep dependencies the package satisfies itself")
	cmd.Flags().BoolVarP(&opts.ListUnanalyzed, "list-unanalyzed", "M", false, "List file types that were not analyzed")
	cmd.Flags().BoolVarP(&opts.EchoManifest, "echo-manifest", "m", false, "Print the manifest before the dependencies")
	cmd.Flags().StringArrayVarP(&opts.ProtoDirs, "proto-dir", "d", nil, "Proto area directory (repeatable, first match wins)")
	cmd.Flags().StringArrayVarP(&opts.Tokens, "define", "D", nil, "Run path token definition name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.RunPaths, "run-path", "k", nil, "Run path replacing the detected ones (repeatable)")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "Value of $PLATFORM")
	cmd.Flags().StringSliceVar(&opts.ISAList, "isalist", nil, "Values of $ISALIST")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Analysis workers (default NumCPU)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Write a diagnostics report (YAML, or text for .txt)")

	_ = viper.BindPFlag("proto_dirs", cmd.Flags().Lookup("proto-dir"))
	_ = viper.BindPFlag("dyn_tokens", cmd.Flags().Lookup("define"))
	_ = viper.BindPFlag("run_paths", cmd.Flags().Lookup("run-path"))
	_ = viper.BindPFlag("platform", cmd.Flags().Lookup("platform"))
	_ = viper.BindPFlag("isalist", cmd.Flags().Lookup("isalist"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, manifestPath string, opts generateOptions) error {
	service := newAppService()
	service.Stdout = cmd.OutOrStdout()
	result, err := service.Generate(ctx, app.GenerateRequest{
		ManifestPath:   manifestPath,
		ProtoDirs:      resolveStrings(cmd, opts.ProtoDirs, "proto_dirs", "proto-dir"),
		Tokens:         resolveStrings(cmd, opts.Tokens, "dyn_tokens", "define"),
		RunPaths:       resolveStrings(cmd, opts.RunPaths, "run_paths", "run-path"),
		Platform:       resolveString(cmd, opts.Platform, "platform", "platform"),
		ISAList:        resolveStrings(cmd, opts.ISAList, "isalist", "isalist"),
		PythonSysPath:  viper.GetStringSlice("python.sys_path"),
		PythonMaxDepth: viper.GetInt("python.max_depth"),
		KeepInternal:   opts.KeepInternal,
		EchoManifest:   opts.EchoManifest,
		Workers:        resolveInt(cmd, opts.Workers, "workers", "workers"),
		ReportPath:     opts.Report,
	})
	stderr := cmd.ErrOrStderr()
	if opts.ListUnanalyzed {
		printUnanalyzed(stderr, result.Unanalyzed)
	}
	printDiagnostics(stderr, result.Diagnostics)
	return err
}

func printUnanalyzed(w io.Writer, unanalyzed map[string]string) {
	if len(unanalyzed) == 0 {
		return
	}
	labels := make([]string, 0, len(unanalyzed))
	for label := range unanalyzed {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	fmt.Fprintln(w, "The following file types were not analyzed:")
	for _, label := range labels {
		fmt.Fprintf(w, "\t%s\t%s\n", label, unanalyzed[label])
	}
}

func printDiagnostics(w io.Writer, ds []core.Diagnostic) {
	for _, d := range ds {
		fmt.Fprintln(w, d.Error())
	}
}
