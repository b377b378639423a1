// Package main implements the edfparse binary, which converts eye
// tracker recordings into columnar container files and optionally
// archives them to object storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/oculab/edfparse/internal/config"
	"github.com/oculab/edfparse/internal/container"
	"github.com/oculab/edfparse/internal/edf"
	"github.com/oculab/edfparse/internal/storage"
	"github.com/oculab/edfparse/internal/table"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile    string
		marker        string
		filter        string
		ignoreSamples bool
		join          bool
		raw           bool
		archivePath   string
		showVersion   bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&marker, "marker", "", "Message prefix that starts a new trial (default TRIALID)")
	flag.StringVar(&filter, "filter", "", "Comma-separated message prefixes to keep")
	flag.BoolVar(&ignoreSamples, "ignore-samples", false, "Skip the samples table")
	flag.BoolVar(&join, "join", false, "Left-join events with trial metadata from messages")
	flag.BoolVar(&raw, "raw", false, "Write the generic uncompressed container format")
	flag.StringVar(&archivePath, "archive", "", "Object path to archive the container under")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "edfparse - eye tracker recording converter\n\n")
		fmt.Fprintf(os.Stderr, "Usage: edfparse [options] <input.edf> <output.edc>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  edfparse session.edf session.edc\n")
		fmt.Fprintf(os.Stderr, "  edfparse -marker BLOCKID -filter SYNCTIME,TRIAL_RESULT session.edf session.edc\n")
		fmt.Fprintf(os.Stderr, "  edfparse -archive runs/2024/session.edc session.edf session.edc\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  EDFPARSE_TRIAL_MARKER    Message prefix that starts a new trial\n")
		fmt.Fprintf(os.Stderr, "  EDFPARSE_MESSAGE_FILTER  Comma-separated message prefixes to keep\n")
		fmt.Fprintf(os.Stderr, "  EDFPARSE_ARCHIVE_TYPE    Archive storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  EDFPARSE_S3_BUCKET       S3 bucket for the archive\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("edfparse version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	input, output := flag.Arg(0), flag.Arg(1)

	cfg, err := loadConfig(configFile, marker, filter, ignoreSamples, join, raw)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg, input, output, archivePath); err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
}

// loadConfig assembles the effective configuration from defaults, an
// optional config file, environment variables, and command line flags,
// in that order of precedence.
func loadConfig(configFile, marker, filter string, ignoreSamples, join, raw bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Flags override everything else; booleans only when set.
	if marker != "" {
		cfg.TrialMarker = marker
	}
	if filter != "" {
		var prefixes []string
		for _, p := range strings.Split(filter, ",") {
			if p = strings.TrimSpace(p); p != "" {
				prefixes = append(prefixes, p)
			}
		}
		cfg.MessageFilter = prefixes
	}
	if ignoreSamples {
		cfg.IgnoreSamples = true
	}
	if join {
		cfg.Join = true
	}
	if raw {
		cfg.Raw = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, input, output, archivePath string) error {
	rec, err := edf.Read(input, edf.DecodeOptions{
		TrialMarker:   cfg.TrialMarker,
		MessageFilter: cfg.MessageFilter,
		IgnoreSamples: cfg.IgnoreSamples,
	})
	if err != nil {
		return err
	}

	events := rec.Events
	if cfg.Join {
		events, err = table.Join(rec.Events, rec.Messages)
		if err != nil {
			return err
		}
	}

	tables := map[string]*table.Table{
		"samples":  rec.Samples,
		"events":   events,
		"messages": rec.Messages,
	}

	cal, err := edf.ExtractCalibration(rec.Messages)
	if err != nil {
		return err
	}
	if cal.NumRows() > 0 {
		tables["calibration"] = cal
	}

	if err := container.Save(output, tables, container.Options{Raw: cfg.Raw}); err != nil {
		return err
	}
	log.Printf("Wrote %s: %d samples, %d events, %d messages",
		output, rec.Samples.NumRows(), events.NumRows(), rec.Messages.NumRows())

	if archivePath == "" {
		return nil
	}
	return archive(cfg, output, archivePath)
}

// archive uploads the finished container to the configured object store.
func archive(cfg *config.Config, localPath, objectPath string) error {
	ctx := context.Background()

	var store storage.ObjectStorage
	var err error
	switch cfg.Archive.Type {
	case "local":
		store, err = storage.NewLocalStorage(cfg.Archive.Path)
	case "s3":
		store, err = storage.NewS3Storage(ctx, cfg.Archive.S3.Bucket, storage.S3Config{
			Region:   cfg.Archive.S3.Region,
			Endpoint: cfg.Archive.S3.Endpoint,
		})
	default:
		return fmt.Errorf("archive requested but no archive storage configured")
	}
	if err != nil {
		return err
	}

	if err := store.Upload(ctx, localPath, objectPath); err != nil {
		return err
	}
	log.Printf("Archived %s to %s", localPath, objectPath)
	return nil
}
