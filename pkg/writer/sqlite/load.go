package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/msfeat/pkg/feature"
)

// ErrMapNotFound is returned by LoadFeatureMap when no map matches.
var ErrMapNotFound = errors.New("feature map not found")

// LoadFeatureMap reads a feature map written by WriteFeatureMap. An empty
// name selects the first map in the file. The returned map has fresh
// ranges.
func LoadFeatureMap(path, name string) (*feature.FeatureMap, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	query := `SELECT MapId, Name FROM FeatureMapTable ORDER BY rowid LIMIT 1`
	args := []any{}
	if name != "" {
		query = `SELECT MapId, Name FROM FeatureMapTable WHERE Name = ? ORDER BY rowid LIMIT 1`
		args = append(args, name)
	}

	var rawID, mapName string
	err = db.QueryRow(query, args...).Scan(&rawID, &mapName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q in %s", ErrMapNotFound, name, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query feature maps: %w", err)
	}
	mapID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid map id %q: %w", rawID, err)
	}

	rows, err := db.Query(`
		SELECT FeatureId, RetentionTime, MZ, Intensity, Charge, Quality, blobHullRT, blobHullMZ
		FROM FeatureTable WHERE MapId = ? ORDER BY RowId
	`, rawID)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	m := feature.NewFeatureMap(mapName)
	m.ID = mapID
	for rows.Next() {
		var (
			f              feature.Feature
			rawFeatureID   string
			hullRT, hullMZ []byte
		)
		if err := rows.Scan(&rawFeatureID, &f.RT, &f.MZ, &f.Intensity, &f.Charge, &f.Quality, &hullRT, &hullMZ); err != nil {
			return nil, fmt.Errorf("failed to read feature: %w", err)
		}
		if f.ID, err = uuid.Parse(rawFeatureID); err != nil {
			return nil, fmt.Errorf("invalid feature id %q: %w", rawFeatureID, err)
		}
		if f.Hull, err = decodeHull(hullRT, hullMZ); err != nil {
			return nil, fmt.Errorf("feature %s: %w", rawFeatureID, err)
		}
		m.Add(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read features: %w", err)
	}

	m.UpdateRanges()
	return m, nil
}

func decodeHull(rtBlob, mzBlob []byte) ([]feature.Point, error) {
	rts, err := decodeFloat64s(rtBlob)
	if err != nil {
		return nil, err
	}
	mzs, err := decodeFloat64s(mzBlob)
	if err != nil {
		return nil, err
	}
	if len(rts) != len(mzs) {
		return nil, fmt.Errorf("hull has %d RT and %d m/z values", len(rts), len(mzs))
	}
	if len(rts) == 0 {
		return nil, nil
	}
	hull := make([]feature.Point, len(rts))
	for i := range hull {
		hull[i] = feature.Point{RT: rts[i], MZ: mzs[i]}
	}
	return hull, nil
}
