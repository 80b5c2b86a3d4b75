package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bibin-skaria/layercache/internal/config"
	"github.com/bibin-skaria/layercache/internal/logging"
	"github.com/bibin-skaria/layercache/layers"
	"github.com/bibin-skaria/layercache/manifest"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions are shared by every subcommand
type globalOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "layercache",
		Short: "Selective extraction cache for container image layers",
		Long: `layercache unpacks container image layer blobs that carry catalog
configuration or release manifests into a content-addressed cache, skipping
blobs that were already extracted.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")

	cmd.AddCommand(newExtractCommand(opts))
	cmd.AddCommand(newFindCommand(opts))
	cmd.AddCommand(newCatalogsCommand(opts))
	cmd.AddCommand(newInfoCommand(opts))

	return cmd
}

// load reads the configuration and builds the logger, applying flag
// overrides
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logOpts := cfg.LoggingOptions()
	logOpts.Output = cmd.ErrOrStderr()
	return cfg, logging.New(logOpts), nil
}

func newExtractCommand(opts *globalOptions) *cobra.Command {
	var (
		manifestFile string
		blobsDir     string
		cacheDir     string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the layers of a manifest into the cache",
		Long: `Read an image manifest, deduplicate its layers and unpack every blob that
contains configs/ or release-manifests/ entries into the cache directory.
Blobs whose bucket already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if blobsDir != "" {
				cfg.BlobsDir = blobsDir
			}
			if cacheDir != "" {
				cfg.CacheDir = cacheDir
			}

			refs, err := manifest.LoadLayers(manifestFile)
			if err != nil {
				return err
			}
			log.Debugf("manifest %s lists %d layers", manifestFile, len(refs))

			extractor := layers.NewExtractor(log, cfg.ExtractorConfig())
			report, err := extractor.ExtractLayers(cmd.Context(), cfg.BlobsDir, cfg.CacheDir, refs)
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&manifestFile, "manifest", "m", "", "Image manifest listing the layers")
	cmd.Flags().StringVar(&blobsDir, "blobs-dir", "", "Blob store directory (overrides config)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (overrides config)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func printReport(cmd *cobra.Command, report *layers.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DIGEST\tOUTCOME\tBUCKET")
	for _, res := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Digest, res.Outcome, res.Bucket)
	}
	w.Flush()
}

func newFindCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <cache-root> <name>",
		Short: "Find an extracted directory in the cache",
		Long: `Search two levels below the cache root (bucket, then bucket entries) for
a path containing name, and print it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := opts.load(cmd)
			if err != nil {
				return err
			}

			path, found := layers.FindNamedSubpath(cmd.Context(), log, args[0], args[1])
			if !found {
				return fmt.Errorf("no entry matching %q under %s", args[1], args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	return cmd
}

func newCatalogsCommand(opts *globalOptions) *cobra.Command {
	var (
		workingDir string
		arch       string
	)

	cmd := &cobra.Command{
		Use:   "catalogs",
		Short: "Show manifest URLs and cache paths of configured catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}

			refs, err := manifest.ParseImageIndex(log, cfg.Catalogs())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATALOG\tMANIFEST URL\tCACHE")
			for _, ref := range refs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ref, manifest.ManifestURL(ref),
					manifest.CacheDir(workingDir, ref.Name, ref.Version, arch))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&workingDir, "working-dir", "working-dir", "Directory holding per-catalog caches")
	cmd.Flags().StringVar(&arch, "arch", "", "Architecture subdirectory")

	return cmd
}

func newInfoCommand(opts *globalOptions) *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show cache statistics",
		Long:  "Display the number of buckets, files and bytes held in the cache directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cacheDir == "" {
				cacheDir = cfg.CacheDir
			}

			info, err := layers.Info(cacheDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache Directory: %s\n", cacheDir)
			fmt.Fprintf(out, "Buckets: %d\n", info.Buckets)
			fmt.Fprintf(out, "Total Files: %d\n", info.TotalFiles)
			fmt.Fprintf(out, "Total Size: %s\n", formatBytes(info.TotalSize))
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (overrides config)")

	return cmd
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
