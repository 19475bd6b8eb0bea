package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ossyrian/wzdecode/internal/config"
	"github.com/ossyrian/wzdecode/internal/export"
	"github.com/ossyrian/wzdecode/internal/logging"
	"github.com/ossyrian/wzdecode/internal/parser"
	"github.com/ossyrian/wzdecode/internal/wz"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:          "wzdecode",
	Short:        "Decode WZ packages and images to JSON and extract sprites and sounds",
	SilenceUsage: true,
	RunE:         decode,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	// i/o
	rootCmd.Flags().StringSliceP("input", "i", nil, "path to a .wz package or .img file (repeatable)")
	rootCmd.Flags().StringP("manifest", "m", "", "text file listing inputs, one per line, relative to the manifest")
	rootCmd.Flags().StringP("output", "o", "-", "path to output JSON file (\"-\" for stdout, .zst suffix compresses)")
	rootCmd.Flags().StringP("sprites-output", "s", "", "directory to extract sprites to")
	rootCmd.Flags().String("sounds-output", "", "directory to extract sounds to")
	rootCmd.Flags().StringP("path", "p", "", "only export the subtree at this path")

	// WZ settings
	rootCmd.Flags().String("region", "gms", "game region selecting the key nonce (gms, kms, sea, tms, bms)")
	rootCmd.Flags().Int("game-version", -1, "patch version for offset decryption (detected when negative)")
	rootCmd.Flags().Int("max-reference-hops", 32, "maximum nested UOL references followed by one lookup")

	// other opts
	rootCmd.Flags().Int("concurrency", runtime.NumCPU(), "number of inputs decoded in parallel")
	rootCmd.Flags().String("log-level", "info", "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.Flags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")
	rootCmd.Flags().Bool("dry-run", false, "parse without writing output (validation)")

	viper.BindPFlag("input", rootCmd.Flags().Lookup("input"))
	viper.BindPFlag("manifest", rootCmd.Flags().Lookup("manifest"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("sprites_dir", rootCmd.Flags().Lookup("sprites-output"))
	viper.BindPFlag("sounds_dir", rootCmd.Flags().Lookup("sounds-output"))
	viper.BindPFlag("path", rootCmd.Flags().Lookup("path"))
	viper.BindPFlag("game_region", rootCmd.Flags().Lookup("region"))
	viper.BindPFlag("game_version", rootCmd.Flags().Lookup("game-version"))
	viper.BindPFlag("max_reference_hops", rootCmd.Flags().Lookup("max-reference-hops"))
	viper.BindPFlag("concurrency", rootCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log_output_dir", rootCmd.Flags().Lookup("log-output-dir"))
	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "wzdecode"))
		}
		viper.AddConfigPath("/etc/wzdecode")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("WZDECODE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// decode opens every input, exports the requested subtree and writes the
// combined JSON document.
func decode(cmd *cobra.Command, args []string) error {
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogOutputDir, os.Stderr)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	defer closeLog()

	inputs, err := collectInputs(cfg)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no input files: use --input or --manifest")
	}

	nonce, err := wz.NonceForRegion(cfg.GameRegion)
	if err != nil {
		return err
	}

	// containers are independent, so each input gets its own goroutine;
	// nothing below shares a Package or Blob across goroutines
	docs := make([]*export.Entry, len(inputs))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(1, cfg.Concurrency))
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := decodeFile(input, nonce)
			if err != nil {
				return fmt.Errorf("error parsing %s: %w", input, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.DryRun {
		slog.Info("dry run, not writing output", "inputs", len(inputs))
		return nil
	}

	return writeOutput(cfg.OutputFile, docs)
}

func decodeFile(path string, nonce [4]byte) (*export.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read WZ file: %w", err)
	}

	logger := slog.With("input", path)
	logger.Info("parsing file", "size", humanize.Bytes(uint64(len(data))))

	opts := []parser.Option{
		parser.WithName(filepath.Base(path)),
		parser.WithLogger(logger),
		parser.WithMaxReferenceHops(cfg.MaxReferenceHops),
	}
	if cfg.GameVersion >= 0 {
		opts = append(opts, parser.WithVersion(cfg.GameVersion))
	}

	var root parser.Node
	if strings.EqualFold(filepath.Ext(path), ".img") {
		blob, err := parser.OpenBlob(data, nonce, opts...)
		if err != nil {
			return nil, err
		}
		root = blob.Root()
	} else {
		pkg, err := parser.OpenPackage(data, nonce, opts...)
		if err != nil {
			return nil, err
		}
		root = pkg.Root()
	}

	if cfg.Path != "" {
		node, ok, err := root.Resolve(cfg.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("path %q not found", cfg.Path)
		}
		root = node
	}

	if cfg.SpritesOutputDir != "" || cfg.SoundsOutputDir != "" {
		x := &export.Extractor{
			SpritesDir: cfg.SpritesOutputDir,
			SoundsDir:  cfg.SoundsOutputDir,
			Logger:     logger,
		}
		if _, err := x.Extract(root); err != nil {
			return nil, err
		}
	}

	return export.Document(root)
}

// collectInputs merges --input with the entries of --manifest.
func collectInputs(cfg *config.Config) ([]string, error) {
	inputs := append([]string(nil), cfg.InputFiles...)
	if cfg.ManifestFile == "" {
		return inputs, nil
	}

	f, err := os.Open(cfg.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	names, err := parser.ReadManifest(f)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(cfg.ManifestFile)
	for _, name := range names {
		inputs = append(inputs, filepath.Join(dir, name))
	}
	return inputs, nil
}

func writeOutput(path string, docs []*export.Entry) error {
	var v any = docs
	if len(docs) == 1 {
		v = docs[0]
	}

	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := export.Write(w, v, strings.HasSuffix(path, ".zst")); err != nil {
		return err
	}
	slog.Info("wrote output", "output", path)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
