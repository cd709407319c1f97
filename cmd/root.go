package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkarev/bracedl/internal/config"
	"github.com/tkarev/bracedl/internal/engine"
	"github.com/tkarev/bracedl/internal/output"
	"github.com/tkarev/bracedl/internal/utils"
)

var (
	configFile     string
	outputDir      string
	maxConcurrent  int
	chunkSize      int64
	timeout        time.Duration
	connectTimeout time.Duration
	retries        int
	retryDelay     time.Duration
	noResume       bool
	userAgent      string
	headerFlags    []string
	debug          bool
)

var BracedlVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "bracedl [url-template]",
	Short:   "bracedl downloads numbered file ranges like https://e.com/data_{1..50}.csv concurrently",
	Version: BracedlVersion,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if configFile != "" && len(args) > 0 {
			output.PrintError("Cannot specify a url-template argument and --config together, choose one")
			os.Exit(1)
		}
		if configFile == "" && len(args) == 0 {
			output.PrintError("No url-template or --config provided")
			os.Exit(1)
		}

		var spec engine.DownloadSpec
		if configFile != "" {
			cfg, err := config.Load(configFile)
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to load config: %v", err))
				os.Exit(1)
			}
			if !debug {
				utils.SetLogLevel(cfg.Logging.Level)
			}
			spec = cfg.Spec()
		} else {
			spec = engine.DownloadSpec{
				URLTemplate:    args[0],
				OutputDir:      outputDir,
				MaxConcurrent:  maxConcurrent,
				ChunkSize:      chunkSize,
				Timeout:        timeout,
				ConnectTimeout: connectTimeout,
				UserAgent:      userAgent,
				Retry: engine.RetryPolicy{
					Enabled:     retries > 1,
					MaxAttempts: retries,
					Delay:       retryDelay,
				},
				ResumeEnabled: !noResume,
			}
		}
		for _, header := range headerFlags {
			parts := strings.SplitN(header, ":", 2)
			if len(parts) != 2 {
				output.PrintError(fmt.Sprintf("Invalid header %q, expected 'Key: Value'", header))
				os.Exit(1)
			}
			if spec.Headers == nil {
				spec.Headers = make(map[string]string)
			}
			spec.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}

		orch := engine.NewOrchestrator(spec)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			output.PrintWarning("Interrupt received, finishing current chunks (press again to force quit)")
			orch.Cancel()
			<-sigCh
			os.Exit(1)
		}()

		renderer := output.NewRenderer()
		renderer.StartDisplay()
		started := time.Now()
		summary, err := orch.Run(renderer.Events())
		renderer.Stop()
		if err != nil {
			output.PrintError(fmt.Sprintf("Download aborted: %v", err))
			os.Exit(1)
		}
		renderer.ShowSummary(summary, time.Since(started))
		if summary.Failed > 0 {
			os.Exit(1)
		}
		if summary.Cancelled == 0 {
			output.PrintSuccess("All downloads completed")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file (alternative to the url-template argument)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./downloads", "Directory to write downloaded files to")
	rootCmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "n", 10, "Maximum simultaneous transfers")
	rootCmd.Flags().Int64Var(&chunkSize, "chunk-size", utils.DefaultChunkSize, "Streaming chunk size in bytes")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Total per-request timeout (eg. 30s, 5m)")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 10*time.Second, "Connect timeout per request")
	rootCmd.Flags().IntVarP(&retries, "retries", "r", 1, "Total attempts per file (1 disables retry)")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", 2*time.Second, "Fixed delay between attempts")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "Always download from scratch, ignoring partial files")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	rootCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Extra request header as 'Key: Value' (repeatable)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
