// Package pipeline chains the signal processing stages for profile spectra:
// optional resampling, smoothing, noise estimation, peak picking and peak
// list thinning. Batches run on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/msfeat/pkg/config"
	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
	"github.com/ChrisMcGann/msfeat/pkg/filter"
	"github.com/ChrisMcGann/msfeat/pkg/noise"
	"github.com/ChrisMcGann/msfeat/pkg/peakpick"
	"github.com/ChrisMcGann/msfeat/pkg/resample"
)

// Result is the outcome for one spectrum.
type Result struct {
	NativeID string
	RT       float64
	MSLevel  int
	Peaks    core.Peaks
	// Noise is nil when the spectrum is narrower than the noise window.
	Noise *noise.Estimate
	Err   error
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithMetrics records processing metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// Processor runs the configured stages. It is safe for concurrent use; the
// configuration and element table are shared read-only.
type Processor struct {
	resample    bool
	spacing     float64
	resampleOpt []resample.Option

	filter   filter.Config
	noise    noise.Config
	picker   peakpick.Config
	peaks    filter.PeakFilter
	finder   *feature.Finder
	workers  int
	failFast bool

	logger  *slog.Logger
	metrics *Metrics
}

// New builds a Processor from cfg.
func New(cfg *config.Config, opts ...Option) (*Processor, error) {
	p := &Processor{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:  NewMetrics(nil),
		workers:  cfg.Batch.Workers,
		failFast: cfg.Batch.FailFast,
		peaks:    cfg.PeakFilter(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		p.workers = runtime.GOMAXPROCS(0)
	}

	var err error
	p.spacing, p.resampleOpt, p.resample = cfg.ResampleOptions()
	if p.filter, err = cfg.FilterConfig(); err != nil {
		return nil, err
	}
	if p.noise, err = cfg.NoiseConfig(); err != nil {
		return nil, err
	}
	if p.picker, err = cfg.PeakPickerConfig(); err != nil {
		return nil, err
	}

	fc, err := cfg.FinderConfig()
	if err != nil {
		return nil, err
	}
	db, err := cfg.ElementDB()
	if err != nil {
		return nil, err
	}
	if p.finder, err = feature.NewFinder(fc, db, p.logger); err != nil {
		return nil, err
	}
	return p, nil
}

// Process runs every stage over spec.
func (p *Processor) Process(spec *core.Spectrum) Result {
	r := p.process(spec)
	p.metrics.record(&r)
	return r
}

func (p *Processor) process(spec *core.Spectrum) Result {
	res := Result{NativeID: spec.NativeID, RT: spec.RT, MSLevel: spec.MSLevel}
	if err := spec.Validate(); err != nil {
		res.Err = err
		return res
	}

	cur := spec
	var err error
	if p.resample {
		err = p.timed("resample", func() error {
			cur, err = resample.Spectrum(cur, p.spacing, p.resampleOpt...)
			return err
		})
		if err != nil {
			res.Err = err
			return res
		}
	}

	err = p.timed("filter", func() error {
		cur, err = p.filter.ApplySpectrum(cur)
		return err
	})
	if err != nil {
		res.Err = err
		return res
	}

	err = p.timed("noise", func() error {
		res.Noise, err = p.noise.Estimate(cur.Samples)
		return err
	})
	if errors.Is(err, core.ErrInsufficientData) {
		p.logger.Debug("picking without noise estimate", "spectrum", spec.NativeID, "error", err)
		res.Noise = nil
	} else if err != nil {
		res.Err = fmt.Errorf("noise estimate for %s: %w", spec.NativeID, err)
		return res
	}

	var picked core.Peaks
	err = p.timed("pick", func() error {
		picked, err = peakpick.PickSpectrum(cur, res.Noise, p.picker)
		return err
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Peaks = p.peaks.Apply(picked)

	if res.Noise != nil && !res.Noise.Converged {
		p.logger.Debug("noise estimate did not converge",
			"spectrum", spec.NativeID, "windows", res.Noise.Unconverged)
	}
	return res
}

func (p *Processor) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

// Batch processes spectra concurrently and returns one Result per input, in
// input order. Cancellation is checked before each spectrum; items that do
// not start report the context error. With fail_fast the first failure
// cancels the remaining items and is returned.
func (p *Processor) Batch(ctx context.Context, spectra []*core.Spectrum) ([]Result, error) {
	results := make([]Result, len(spectra))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, spec := range spectra {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{NativeID: spec.NativeID, RT: spec.RT, MSLevel: spec.MSLevel, Err: err}
				p.metrics.record(&results[i])
				return nil
			}
			results[i] = p.Process(spec)
			if results[i].Err != nil {
				p.logger.Warn("spectrum failed", "spectrum", spec.NativeID, "error", results[i].Err)
				if p.failFast {
					return fmt.Errorf("spectrum %s: %w", spec.NativeID, results[i].Err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	p.logger.Info("batch complete", "spectra", len(spectra), "workers", p.workers, "failed", countFailed(results))
	return results, err
}

// Features groups the peaks of successful MS1 results into a feature map.
func (p *Processor) Features(ctx context.Context, name string, results []Result) (*feature.FeatureMap, error) {
	scans := make([]feature.Scan, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.MSLevel != 1 {
			continue
		}
		scans = append(scans, feature.Scan{NativeID: r.NativeID, RT: r.RT, Peaks: r.Peaks})
	}
	return p.finder.Find(ctx, name, scans)
}

func countFailed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
