package export

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/session"
)

func sampleMerged() *session.Merged {
	return &session.Merged{
		Variant: session.Monocular,
		Columns: []string{"gaze_x", "gaze_y"},
		Fields:  session.FieldSet{"audio_volume", "audio_filepath"},
		Rows: []session.MergedRow{
			{Sample: session.Sample{Time: 99.5, Values: []float64{0.25, math.NaN()}}},
			{
				Sample:      session.Sample{Time: 100.5, Values: []float64{0.5, 1}, Message: "exp1 trial 1 start", HasMessage: true},
				Metadata:    []string{"0.5", "sounds/a, b.wav"},
				HasMetadata: true,
			},
		},
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in, suffix, want string
	}{
		{"foobar_myexp_2021_Aug_09_1904.csv", DefaultSuffix, "foobar_myexp_2021_Aug_09_1904_combined.csv"},
		{"/data/run.csv", DefaultSuffix, "run_combined.csv"},
		{"csv_run.csv", "_merged", "csv_run_merged.csv"},
		{"noext", DefaultSuffix, "noext_combined.csv"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in, tt.suffix); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.in, tt.suffix, got, tt.want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleMerged()))

	want := "time,gaze_x,gaze_y,message,audio_volume,audio_filepath\n" +
		"99.5,0.25,,,,\n" +
		"100.5,0.5,1,exp1 trial 1 start,0.5,\"sounds/a, b.wav\"\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "", FormatFloat(math.NaN()))
	assert.Equal(t, "1.0000001", FormatFloat(1.0000001))
	assert.Equal(t, "-3", FormatFloat(-3))
	assert.Equal(t, "1e+21", FormatFloat(1e21))
}

func TestWriteFile(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/out", 0755))

	path, err := WriteFile(mfs, "/out", "run_combined.csv", sampleMerged())
	require.NoError(t, err)
	assert.Equal(t, "/out/run_combined.csv", path)

	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "exp1 trial 1 start")
}

func TestWriteFile_RejectsEscape(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/out", 0755))

	_, err := WriteFile(mfs, "/out", "../evil.csv", sampleMerged())
	assert.Error(t, err)
	assert.False(t, mfs.Exists("/evil.csv"))
}

func TestWriteFile_MissingDir(t *testing.T) {
	_, err := WriteFile(fsutil.NewMemoryFileSystem(), "/absent", "x.csv", sampleMerged())
	assert.Error(t, err)
}
