// Command gen-session writes a synthetic recording session (sensor stream
// container plus trial log) for trying out trialmerge.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/session"
	"github.com/banshee-data/trialmerge/internal/synth"
)

func main() {
	output := flag.String("o", ".", "output directory")
	trials := flag.Int("trials", 20, "number of trials")
	rate := flag.Float64("rate", 60, "samples per second")
	offset := flag.Float64("offset", -1200, "stream clock minus trial log clock, seconds")
	mono := flag.Bool("mono", false, "write a monocular stream")
	name := flag.String("name", "session01", "file name stem")
	skip := flag.Int("skip", 0, "leave every Nth trial without a start time (0 = none)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	if err := os.MkdirAll(*output, 0755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	g := synth.NewGenerator(*seed)
	g.Trials = *trials
	g.SampleRate = *rate
	g.Offset = *offset
	g.SkipEvery = *skip
	if *mono {
		g.Variant = session.Monocular
	}

	rec, err := g.Generate()
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	logPath, streamPath, err := synth.Write(context.Background(), fsutil.OSFileSystem{}, *output, *name, rec)
	if err != nil {
		log.Fatalf("write session: %v", err)
	}
	log.Printf("✓ Created: %s (%d samples, %d markers)", streamPath, len(rec.Stream.Samples), len(rec.Markers))
	log.Printf("✓ Created: %s (%d trials, %d started)", logPath, len(rec.Log.Rows), rec.Eligible)
}
