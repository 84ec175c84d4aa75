package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/msfeat/pkg/align"
	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
)

func sampleMap() *feature.FeatureMap {
	m := feature.NewFeatureMap("run-a",
		feature.Feature{
			ID: uuid.New(), RT: 12, MZ: 751.37, Intensity: 2350, Charge: 2, Quality: 0.99,
			Hull: []feature.Point{{RT: 10, MZ: 751.37}, {RT: 15, MZ: 751.37}, {RT: 15, MZ: 752.87}, {RT: 10, MZ: 752.87}},
		},
		feature.Feature{ID: uuid.New(), RT: 30, MZ: 801.0, Intensity: 1000, Charge: 1, Quality: 0.9},
	)
	m.UpdateRanges()
	return m
}

func TestWriteAndLoadFeatureMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	runID, err := w.WriteRun("run-a", []byte("strict: false\n"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, runID)

	want := sampleMap()
	require.NoError(t, w.WriteFeatureMap(runID, want))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close(), "Close after Finalize is a no-op")

	got, err := LoadFeatureMap(path, "run-a")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.False(t, got.Stale())
	if diff := cmp.Diff(want.Features(), got.Features()); diff != "" {
		t.Errorf("LoadFeatureMap() mismatch (-want +got):\n%s", diff)
	}

	wantRanges, err := want.Ranges()
	require.NoError(t, err)
	gotRanges, err := got.Ranges()
	require.NoError(t, err)
	assert.Equal(t, wantRanges, gotRanges)

	first, err := LoadFeatureMap(path, "")
	require.NoError(t, err)
	assert.Equal(t, want.ID, first.ID)

	_, err = LoadFeatureMap(path, "run-b")
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestWriteFeatureMapRequiresFreshRanges(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer w.Close()

	m := sampleMap()
	m.Add(feature.Feature{RT: 50, MZ: 900})
	err = w.WriteFeatureMap(uuid.New(), m)
	assert.ErrorIs(t, err, core.ErrStaleRanges)
}

func TestWriteEmptyFeatureMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	m := feature.NewFeatureMap("empty")
	m.UpdateRanges()
	require.NoError(t, w.WriteFeatureMap(uuid.New(), m))
	require.NoError(t, w.Finalize())

	got, err := LoadFeatureMap(path, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestWritePeaks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	runID, err := w.WriteRun("peaks", nil)
	require.NoError(t, err)

	peaks := core.Peaks{
		{Pos: 400, Intensity: 1000, FWHM: 0.1, SNR: 50, Area: 120},
		{Pos: 410, Intensity: 500, FWHM: 0.1, SNR: 25, Area: 60},
	}
	require.NoError(t, w.WritePeaks(runID, "scan=1", 12.5, 1, peaks))
	require.NoError(t, w.WritePeaks(runID, "scan=2", 13.5, 1, nil))

	unsorted := core.Peaks{{Pos: 2}, {Pos: 1}}
	assert.ErrorIs(t, w.WritePeaks(runID, "scan=3", 14.5, 1, unsorted), core.ErrInvalidParameter)
	require.NoError(t, w.Finalize())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		count    int
		nativeID string
		posBlob  []byte
		snrBlob  []byte
	)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM PeakTable`).Scan(&count))
	assert.Equal(t, 2, count)

	require.NoError(t, db.QueryRow(`SELECT NativeId, blobPosition, blobSNR FROM PeakTable WHERE SpectrumId = 1`).
		Scan(&nativeID, &posBlob, &snrBlob))
	assert.Equal(t, "scan=1", nativeID)

	pos, err := decodeFloat64s(posBlob)
	require.NoError(t, err)
	assert.Equal(t, []float64{400, 410}, pos)
	snr, err := decodeFloat64s(snrBlob)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 25}, snr)
}

func TestWriterAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	for i := 0; i < 2; i++ {
		w, err := NewWriter(path)
		require.NoError(t, err)
		require.NoError(t, w.WritePeaks(uuid.New(), "scan=1", 1, 1, nil))
		require.NoError(t, w.Finalize())
	}

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var last int
	require.NoError(t, db.QueryRow(`SELECT MAX(SpectrumId) FROM PeakTable`).Scan(&last))
	assert.Equal(t, 2, last)
}

func TestWriteTransform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	tr, err := align.InterpolatedTransform([]align.Knot{{Source: 0, Target: 5}, {Source: 10, Target: 16}})
	require.NoError(t, err)
	mapID, refID := uuid.New(), uuid.New()
	require.NoError(t, w.WriteTransform(mapID, refID, align.LinearTransform(1.05, 12), 0.9))
	require.NoError(t, w.WriteTransform(mapID, refID, tr, 0.9))
	require.NoError(t, w.Finalize())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT Kind, Slope, Intercept, blobKnotTarget FROM TransformTable ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var (
			kind      string
			slope     float64
			intercept float64
			targets   []byte
		)
		require.NoError(t, rows.Scan(&kind, &slope, &intercept, &targets))
		kinds = append(kinds, kind)
		if kind == "linear" {
			assert.Equal(t, 1.05, slope)
			assert.Equal(t, 12.0, intercept)
		} else {
			values, err := decodeFloat64s(targets)
			require.NoError(t, err)
			assert.Equal(t, []float64{5, 16}, values)
		}
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"linear", "interpolated"}, kinds)
}

func TestDecodeFloat64sRejectsTruncatedBlob(t *testing.T) {
	_, err := decodeFloat64s([]byte{1, 2, 3})
	assert.Error(t, err)
}
