package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/pipeline"
	"github.com/ChrisMcGann/msfeat/pkg/reader/msp"
	"github.com/ChrisMcGann/msfeat/pkg/writer/sqlite"
)

var (
	// Flags for pick command
	inputFile  string
	outputFile string
	runName    string
	chunkSize  int
	findFeats  bool
	metricsOut string
)

func init() {
	f := pickCmd.Flags()
	f.StringVarP(&inputFile, "in", "i", "", "Input MSP file with profile spectra (required)")
	f.StringVarP(&outputFile, "out", "o", "", "Output SQLite database (required)")
	f.StringVar(&runName, "name", "", "Run name (default: input file name)")
	f.IntVar(&chunkSize, "chunk-size", 256, "Spectra read and processed per batch")
	f.Int("workers", 0, "Concurrent spectra (0 = GOMAXPROCS)")
	f.Bool("fail-fast", false, "Stop at the first failed spectrum")
	f.BoolVar(&findFeats, "features", false, "Detect features across MS1 spectra")
	f.StringVar(&metricsOut, "metrics-out", "", "Write processing metrics to this file in Prometheus text format")

	mustBind("batch.workers", f.Lookup("workers"))
	mustBind("batch.fail_fast", f.Lookup("fail-fast"))

	pickCmd.MarkFlagRequired("in")
	pickCmd.MarkFlagRequired("out")
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick peaks in profile spectra and store them in SQLite",
	Long: `Read profile spectra from an MSP file, run the configured resampling,
smoothing, noise estimation and peak picking, and write the peak lists
to a SQLite database. With --features, MS1 peak lists are grouped into
isotope pattern features and written as a feature map.

Example:
  msfeat pick --in run1.msp --out run1.db --features --config msfeat.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPick(cmd.Context())
	},
}

func runPick(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if chunkSize <= 0 {
		return core.InvalidParam("chunk-size", chunkSize, "must be positive")
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if findFeats {
		cfg.FeatureFinder.Enabled = true
	}
	if runName == "" {
		runName = strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	}

	reg := prometheus.NewRegistry()
	proc, err := pipeline.New(cfg,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(pipeline.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}

	inFile, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	dump, err := configYAML(cfg)
	if err != nil {
		return err
	}
	runID, err := writer.WriteRun(runName, dump)
	if err != nil {
		return err
	}

	reader := msp.NewReader(inFile)
	var (
		count, failed, peaks int
		ms1                  []pipeline.Result
		chunk                = make([]*core.Spectrum, 0, chunkSize)
	)

	flush := func() error {
		results, err := proc.Batch(ctx, chunk)
		if err != nil {
			return err
		}
		for _, r := range results {
			count++
			if r.Err != nil {
				failed++
				continue
			}
			if err := writer.WritePeaks(runID, r.NativeID, r.RT, r.MSLevel, r.Peaks); err != nil {
				return err
			}
			peaks += len(r.Peaks)
			if cfg.FeatureFinder.Enabled && r.MSLevel == 1 {
				ms1 = append(ms1, r)
			}
		}
		chunk = chunk[:0]
		return nil
	}

	for reader.Next() {
		chunk = append(chunk, reader.Spectrum())
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading MSP file: %w", err)
	}
	if len(chunk) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	features := 0
	if cfg.FeatureFinder.Enabled {
		m, err := proc.Features(ctx, runName, ms1)
		if err != nil {
			return err
		}
		if err := writer.WriteFeatureMap(runID, m); err != nil {
			return err
		}
		features = m.Len()
	}

	if err := writer.Finalize(); err != nil {
		return err
	}
	if metricsOut != "" {
		if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	logger.Info("pick complete",
		"run", runName, "run_id", runID, "spectra", count, "failed", failed,
		"peaks", peaks, "features", features, "output", outputFile)
	return nil
}
