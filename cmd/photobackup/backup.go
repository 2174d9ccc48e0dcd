package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"photobackup/pkg/backup"
	"photobackup/pkg/config"
	"photobackup/pkg/logger"
	"photobackup/pkg/netease"
	"photobackup/pkg/storage"
	"photobackup/pkg/ui"
)

var (
	outputDir        string
	concurrent       int
	timeout          time.Duration
	feedFormat       string
	baseURL          string
	rateLimit        int
	maxRetries       int
	allowInsecureTLS bool
	skipExisting     bool
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup <ownerId> [outputRoot]",
	Short: "Download all albums of a user",
	Long: `Download all photos of every album of a photo.163.com user.

The owner's landing page is read to locate the album index; each album is
then fetched and its photos are stored under <outputRoot>/<ownerId>/<album>.
A photo that cannot be downloaded is logged and skipped, an album that cannot
be read is reported as empty.`,
	Example: `  # Back up into the default directory
  photobackup backup someone

  # Back up into ./photos with five parallel downloads
  photobackup backup someone ./photos --concurrent 5

  # The photo CDN serves broken certificates on https
  photobackup backup someone --allow-insecure-tls

  # Resume an interrupted backup without fetching stored photos again
  photobackup backup someone --skip-existing`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	addBackupFlags(backupCmd)
}

func addBackupFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output root (default: "+config.DefaultOutputDirectory+")")
	cmd.Flags().IntVar(&concurrent, "concurrent", 3, "number of concurrent photo downloads")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout of a single request")
	cmd.Flags().StringVar(&feedFormat, "feed-format", "auto", "feed parsing strategy (auto, split, bracket)")
	cmd.Flags().StringVar(&baseURL, "base-url", netease.DefaultBaseURL, "site serving the landing pages")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "page requests per minute (0 = unlimited)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "attempts per request (0 disables retries)")
	cmd.Flags().BoolVar(&allowInsecureTLS, "allow-insecure-tls", false, "skip certificate verification for photo downloads")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "do not download photos that already exist on disk")
}

// changedFlags collects the flags set on the command line
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if cmd.Flags().Changed(name) {
			flags[name] = value
		}
	}

	set("output", outputDir)
	set("concurrent", concurrent)
	set("timeout", timeout)
	set("feed-format", feedFormat)
	set("base-url", baseURL)
	set("rate-limit", rateLimit)
	set("max-retries", maxRetries)
	set("allow-insecure-tls", allowInsecureTLS)
	set("skip-existing", skipExisting)

	if logLevel != "" {
		flags["log-level"] = logLevel
	} else if quiet {
		flags["log-level"] = "error"
	}
	return flags
}

func runBackup(cmd *cobra.Command, args []string) error {
	ownerID := strings.TrimSpace(args[0])
	if ownerID == "" {
		return fmt.Errorf("owner id must not be empty")
	}

	flags := changedFlags(cmd)
	if len(args) > 1 {
		flags["output"] = args[1]
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("photobackup starting")

	client, err := netease.NewClient(cfg, log)
	if err != nil {
		return err
	}

	var progress backup.Progress = backup.NopProgress{}
	if !ui.IsQuiet() {
		progress = ui.NewProgressBar(os.Stdout)
	}

	store := storage.NewManager()
	dl := backup.NewDownloader(client, store, backup.Options{
		Concurrency:  cfg.Download.ConcurrentDownloads,
		SkipExisting: cfg.Output.SkipExisting,
		Progress:     progress,
	}, log)
	svc := backup.NewService(client, dl, cfg.Output.BaseDirectory, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintBanner(ownerID, netease.LandingURL(client.BaseURL(), ownerID), cfg.Output.BaseDirectory)

	start := time.Now()
	summary, err := svc.Run(ctx, ownerID)
	if err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Backup interrupted")
		}
		return err
	}

	printSummary(summary, store.SavedBytes(), time.Since(start))
	return nil
}

func printSummary(s *backup.Summary, written int64, elapsed time.Duration) {
	ui.PrintInfo("Albums", fmt.Sprintf("%d", len(s.Albums)))
	ui.PrintInfo("Photos saved", fmt.Sprintf("%d of %d (%s)", s.Saved(), s.Attempted(), ui.FormatBytes(written)))
	for _, a := range s.Aborted {
		ui.PrintWarning("Album skipped "+a.Album, a.Err)
	}
	if s.Failed() > 0 {
		ui.PrintWarning(fmt.Sprintf("%d photos failed", s.Failed()))
		return
	}
	ui.PrintSuccess(fmt.Sprintf("Backup of %s finished in %s", s.OwnerID, elapsed.Round(time.Second)))
}
