// Package sqlite stores processing results in SQLite database files:
// picked peak lists, feature maps and RT transformations, grouped by run.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/msfeat/pkg/align"
	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/feature"
)

const (
	// Date format for HeaderTable and RunTable (RFC 3339)
	dateFormat = time.RFC3339

	schemaVersion = 1
)

const schema = `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		Name TEXT,
		CreationDate TEXT,
		Config TEXT
	);

	CREATE TABLE IF NOT EXISTS PeakTable (
		SpectrumId INTEGER PRIMARY KEY,
		RunId TEXT REFERENCES RunTable(RunId),
		NativeId TEXT,
		RetentionTime DOUBLE,
		MSLevel INTEGER,
		PeakCount INTEGER,
		blobPosition BLOB,
		blobIntensity BLOB,
		blobFWHM BLOB,
		blobSNR BLOB,
		blobArea BLOB
	);

	CREATE TABLE IF NOT EXISTS FeatureMapTable (
		MapId TEXT PRIMARY KEY,
		RunId TEXT REFERENCES RunTable(RunId),
		Name TEXT,
		FeatureCount INTEGER,
		RTMin DOUBLE,
		RTMax DOUBLE,
		MZMin DOUBLE,
		MZMax DOUBLE,
		IntensityMin DOUBLE,
		IntensityMax DOUBLE
	);

	CREATE TABLE IF NOT EXISTS FeatureTable (
		RowId INTEGER PRIMARY KEY,
		MapId TEXT REFERENCES FeatureMapTable(MapId),
		FeatureId TEXT,
		RetentionTime DOUBLE,
		MZ DOUBLE,
		Intensity DOUBLE,
		Charge INTEGER,
		Quality DOUBLE,
		blobHullRT BLOB,
		blobHullMZ BLOB
	);

	CREATE TABLE IF NOT EXISTS TransformTable (
		MapId TEXT,
		RefMapId TEXT,
		Kind TEXT,
		Slope DOUBLE,
		Intercept DOUBLE,
		Support DOUBLE,
		blobKnotSource BLOB,
		blobKnotTarget BLOB
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT
	);
	`

// Writer handles writing results to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	peakStmt   *sql.Stmt
	spectrumID int
	created    time.Time
	finalized  bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writes from statements and transactions.
	db.SetMaxOpenConns(1)

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		spectrumID: 1,
		created:    time.Now(),
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	// Continue numbering when appending to an existing file.
	var last sql.NullInt64
	if err := w.db.QueryRow(`SELECT MAX(SpectrumId) FROM PeakTable`).Scan(&last); err != nil {
		return fmt.Errorf("failed to read peak table: %w", err)
	}
	if last.Valid {
		w.spectrumID = int(last.Int64) + 1
	}
	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.peakStmt, err = w.db.Prepare(`
		INSERT INTO PeakTable (
			SpectrumId, RunId, NativeId, RetentionTime, MSLevel, PeakCount,
			blobPosition, blobIntensity, blobFWHM, blobSNR, blobArea
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare peak statement: %w", err)
	}

	return nil
}

// WriteRun records a processing run and returns its ID. config is the
// effective configuration, stored verbatim.
func (w *Writer) WriteRun(name string, config []byte) (uuid.UUID, error) {
	id := uuid.New()
	_, err := w.db.Exec(`INSERT INTO RunTable (RunId, Name, CreationDate, Config) VALUES (?, ?, ?, ?)`,
		id.String(), name, time.Now().Format(dateFormat), string(config))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// WritePeaks writes the picked peaks of one spectrum.
func (w *Writer) WritePeaks(runID uuid.UUID, nativeID string, rt float64, msLevel int, peaks core.Peaks) error {
	// Ensure peaks are sorted
	if !peaks.IsSorted() {
		return fmt.Errorf("%w: peaks of %s are not in position order", core.ErrInvalidParameter, nativeID)
	}

	// Encode peaks as binary blobs (little-endian float64)
	_, err := w.peakStmt.Exec(
		w.spectrumID,   // SpectrumId
		runID.String(), // RunId
		nativeID,       // NativeId
		rt,             // RetentionTime
		msLevel,        // MSLevel
		len(peaks),     // PeakCount
		encodePeaks(peaks, func(p core.Peak) float64 { return p.Pos }),       // blobPosition
		encodePeaks(peaks, func(p core.Peak) float64 { return p.Intensity }), // blobIntensity
		encodePeaks(peaks, func(p core.Peak) float64 { return p.FWHM }),      // blobFWHM
		encodePeaks(peaks, func(p core.Peak) float64 { return p.SNR }),       // blobSNR
		encodePeaks(peaks, func(p core.Peak) float64 { return p.Area }),      // blobArea
	)
	if err != nil {
		return fmt.Errorf("failed to insert peaks for %s: %w", nativeID, err)
	}

	w.spectrumID++
	return nil
}

// WriteFeatureMap writes m and its features in one transaction. The map's
// ranges must be fresh.
func (w *Writer) WriteFeatureMap(runID uuid.UUID, m *feature.FeatureMap) error {
	r, err := m.Ranges()
	if err != nil {
		return fmt.Errorf("feature map %s: %w", m.Name, err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO FeatureMapTable (
			MapId, RunId, Name, FeatureCount, RTMin, RTMax, MZMin, MZMax, IntensityMin, IntensityMax
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID.String(), runID.String(), m.Name, m.Len(),
		finite(r.RT.Min), finite(r.RT.Max), finite(r.MZ.Min), finite(r.MZ.Max),
		finite(r.Intensity.Min), finite(r.Intensity.Max))
	if err != nil {
		return fmt.Errorf("failed to insert feature map: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO FeatureTable (
			MapId, FeatureId, RetentionTime, MZ, Intensity, Charge, Quality, blobHullRT, blobHullMZ
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < m.Len(); i++ {
		f := m.At(i)
		hullRT := make([]float64, len(f.Hull))
		hullMZ := make([]float64, len(f.Hull))
		for j, p := range f.Hull {
			hullRT[j], hullMZ[j] = p.RT, p.MZ
		}
		if _, err := stmt.Exec(m.ID.String(), f.ID.String(), f.RT, f.MZ, f.Intensity, f.Charge, f.Quality,
			encodeFloat64s(hullRT), encodeFloat64s(hullMZ)); err != nil {
			return fmt.Errorf("failed to insert feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feature map: %w", err)
	}
	return nil
}

// WriteTransform records the transformation mapping mapID's RTs onto
// refID's.
func (w *Writer) WriteTransform(mapID, refID uuid.UUID, t align.Transformation, support float64) error {
	src := make([]float64, len(t.Knots))
	dst := make([]float64, len(t.Knots))
	for i, k := range t.Knots {
		src[i], dst[i] = k.Source, k.Target
	}
	_, err := w.db.Exec(`
		INSERT INTO TransformTable (MapId, RefMapId, Kind, Slope, Intercept, Support, blobKnotSource, blobKnotTarget)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, mapID.String(), refID.String(), t.Kind.String(), t.Slope, t.Intercept, support,
		encodeFloat64s(src), encodeFloat64s(dst))
	if err != nil {
		return fmt.Errorf("failed to insert transform: %w", err)
	}
	return nil
}

func encodePeaks(peaks core.Peaks, value func(core.Peak) float64) []byte {
	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = value(p)
	}
	return encodeFloat64s(values)
}

// encodeFloat64s encodes values as a little-endian float64 blob
func encodeFloat64s(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeFloat64s(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

// finite maps the infinite bounds of an empty range to NULL.
func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	// Write HeaderTable
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description)
		VALUES (?, ?, ?, ?)
	`, schemaVersion, w.created.Format(dateFormat), time.Now().Format(dateFormat), "msfeat results")

	// Close prepared statements
	if w.peakStmt != nil {
		w.peakStmt.Close()
	}

	// Close database
	if cerr := w.db.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close database: %w", cerr))
	}
	if err != nil {
		return fmt.Errorf("failed to finalize %s: %w", w.outputPath, err)
	}
	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
