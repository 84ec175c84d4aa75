// Package msp provides a streaming reader for profile spectra stored in the
// MSP text format.
//
// Each entry is a header followed by its samples:
//
//	Name: scan=1
//	Comment: RetentionTime=12.5 MSLevel=1
//	Num peaks: 3
//	400.00	10.5
//	400.01	12.0
//	400.02	9.1
//
// The Name becomes the spectrum's native ID. Retention time and MS level
// may also be given as "RetentionTime:" and "MSLevel:" header lines.
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msfeat/pkg/core"
)

const maxLineSize = 1 << 20

// Reader provides streaming access to MSP files.
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MSP reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum.
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading.
func (r *Reader) Err() error {
	return r.err
}

// ReadAll reads every remaining spectrum.
func (r *Reader) ReadAll() ([]*core.Spectrum, error) {
	var out []*core.Spectrum
	for r.Next() {
		out = append(out, r.Spectrum())
	}
	return out, r.Err()
}

// readSpectrum reads a single entry.
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{MSLevel: 1}

	var numPeaks int
	inPeaks := false
	named := false

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" {
			if named && !inPeaks {
				return nil, fmt.Errorf("line %d: entry %q ends before its peak list", r.lineNum, spec.NativeID)
			}
			continue
		}

		if !inPeaks {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: expected header field, got %q", r.lineNum, line)
			}
			value = strings.TrimSpace(value)

			switch strings.ToLower(strings.TrimSpace(key)) {
			case "name":
				spec.NativeID = value
				named = true
			case "comment":
				if err := parseComment(spec, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "retentiontime", "rt":
				rt, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid retention time: %w", r.lineNum, err)
				}
				spec.RT = rt
			case "mslevel":
				level, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid ms level: %w", r.lineNum, err)
				}
				spec.MSLevel = level
			case "num peaks", "numpeaks":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("line %d: invalid num peaks %q", r.lineNum, value)
				}
				if !named {
					return nil, fmt.Errorf("line %d: num peaks before name", r.lineNum)
				}
				numPeaks = n
				inPeaks = true
				spec.Samples = make(core.Samples, 0, n)
				if n == 0 {
					return spec, nil
				}
			}
			continue
		}

		sample, err := parseSample(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Samples = append(spec.Samples, sample)

		if len(spec.Samples) >= numPeaks {
			if !spec.Samples.IsSorted() {
				spec.Samples.Sort()
			}
			return spec, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if inPeaks {
		return nil, fmt.Errorf("entry %q: expected %d peaks, got %d", spec.NativeID, numPeaks, len(spec.Samples))
	}
	if named {
		return nil, fmt.Errorf("entry %q: missing num peaks", spec.NativeID)
	}
	return nil, io.EOF
}

// parseComment reads key=value pairs from a Comment field. Unknown keys are
// ignored.
// Example: RetentionTime=61.01 MSLevel=1 Spectrum=scan=101
func parseComment(spec *core.Spectrum, comment string) error {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "RetentionTime", "RT", "RTINSECONDS":
			rt, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid retention time %q", value)
			}
			spec.RT = rt

		case "RetentionTimeMins":
			rt, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid retention time %q", value)
			}
			spec.RT = rt * 60

		case "MSLevel", "MsLevel":
			level, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid ms level %q", value)
			}
			spec.MSLevel = level
		}
	}
	return nil
}

// parseSample parses a sample line (format: "pos\tintensity[\t\"annotation\"]").
func parseSample(line string) (core.Sample, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Sample{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	pos, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Sample{}, fmt.Errorf("invalid position value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Sample{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	return core.Sample{Pos: pos, Intensity: intensity}, nil
}
