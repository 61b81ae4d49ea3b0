// Command trialmerge merges each session's trial log into its sensor stream
// and writes one combined CSV per session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/trialmerge/internal/align"
	"github.com/banshee-data/trialmerge/internal/config"
	"github.com/banshee-data/trialmerge/internal/merge"
	"github.com/banshee-data/trialmerge/internal/pairing"
	"github.com/banshee-data/trialmerge/internal/reformat"
	"github.com/banshee-data/trialmerge/internal/stream"
	"github.com/banshee-data/trialmerge/internal/triallog"
	"github.com/banshee-data/trialmerge/internal/version"
)

var (
	inputDir    = flag.String("input", "", "Directory holding trial logs and sensor stream containers")
	outputDir   = flag.String("output", "", "Directory for combined output (must differ from -input)")
	configPath  = flag.String("config", "", "Optional JSON config file")
	workers     = flag.Int("workers", 0, "Sessions merged in parallel (overrides config when > 0)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("trialmerge", version.String())
		return
	}
	if *inputDir == "" || *outputDir == "" {
		log.Fatal("both -input and -output are required")
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *workers > 0 {
		cfg.SetWorkers(*workers)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := reformat.NewRunner(cfg).Run(ctx, *inputDir, *outputDir)
	if err != nil {
		log.Fatal(describe(err))
	}
	log.Printf("merged %d sessions into %s (run %s)", len(m.Entries), *outputDir, m.RunID)
}

// describe turns the error kinds a user can act on into a short hint.
func describe(err error) string {
	var (
		missingFiles *pairing.MissingFilesError
		corrupt      *stream.CorruptSourceError
		missingCol   *triallog.MissingColumnError
		mismatch     *merge.TrialCountMismatchError
		insufficient *align.InsufficientAnchorsError
	)
	switch {
	case errors.As(err, &missingFiles):
		return fmt.Sprintf("%v\nEach session needs one trial log and one sensor stream file in the input directory.", err)
	case errors.As(err, &corrupt):
		return fmt.Sprintf("%v\nThe sensor stream file could not be read; re-export it from the recording software.", err)
	case errors.As(err, &missingCol):
		return fmt.Sprintf("%v\nCheck metadata_fields and trial_start_column in the config.", err)
	case errors.As(err, &mismatch):
		return fmt.Sprintf("%v\nThe number of trial-start markers differs from the trials in the log; check trial_start_pattern.", err)
	case errors.As(err, &insufficient):
		return fmt.Sprintf("%v\nNo trial-start markers or no started trials were found.", err)
	case errors.Is(err, reformat.ErrSameDirectory):
		return fmt.Sprintf("%v\nChoose a separate -output directory.", err)
	default:
		return err.Error()
	}
}
