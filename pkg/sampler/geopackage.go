package sampler

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/wkb"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eunmann/geodata-harvester/pkg/fileutil"
	"github.com/eunmann/geodata-harvester/pkg/points"
)

// GeoPackage constants for the point layer.
const (
	GeoPackageLayer = "results"
	wgs84SRSID      = 4326
	gpkgAppID       = 0x47504B47 // "GPKG"
	gpkgUserVersion = 10300
)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,` +
	`AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
	`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// WriteGeoPackage writes t as a GeoPackage point layer named "results" in
// EPSG:4326. Every table column becomes a REAL attribute; NaN is stored as
// NULL.
func WriteGeoPackage(path string, t *Table) error {
	return fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		return writeGeoPackage(tmpPath, t)
	})
}

func writeGeoPackage(path string, t *Table) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open geopackage: %w", err)
	}
	defer db.Close()

	if err := createGeoPackageSchema(db, t); err != nil {
		return fmt.Errorf("create geopackage schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	header := t.Header()
	quoted := make([]string, len(header))
	marks := make([]string, len(header))
	for i, name := range header {
		quoted[i] = quoteIdent(name)
		marks[i] = "?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (geom, %s) VALUES (?, %s)",
		quoteIdent(GeoPackageLayer), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(header)+1)
	for i := range t.NumRows() {
		p := t.Points[i]
		blob, err := encodePoint(p.Lon, p.Lat)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode point %d: %w", i, err)
		}
		args[0] = blob
		for j, v := range t.Row(i) {
			if math.IsNaN(v) {
				args[j+1] = nil
			} else {
				args[j+1] = v
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if b, err := points.Bounds(t.Points, 0); err == nil {
		if _, err := db.Exec(`UPDATE gpkg_contents SET min_x = ?, min_y = ?, max_x = ?, max_y = ? WHERE table_name = ?`,
			b.Min.X, b.Min.Y, b.Max.X, b.Max.Y, GeoPackageLayer); err != nil {
			return fmt.Errorf("update extent: %w", err)
		}
	}
	return nil
}

func createGeoPackageSchema(db *sql.DB, t *Table) error {
	var cols strings.Builder
	for _, name := range t.Header() {
		fmt.Fprintf(&cols, ",\n\t\t\t%s REAL", quoteIdent(name))
	}

	stmts := []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgAppID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE,
			min_y DOUBLE,
			max_x DOUBLE,
			max_y DOUBLE,
			srs_id INTEGER,
			CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
		)`,
		fmt.Sprintf(`CREATE TABLE %s (
			fid INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
			geom POINT%s
		)`, quoteIdent(GeoPackageLayer), cols.String()),
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}

	srs := []struct {
		name, org string
		id, orgID int
		def, desc string
	}{
		{"WGS 84 geodetic", "EPSG", wgs84SRSID, 4326, wgs84WKT, "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid"},
		{"Undefined cartesian SRS", "NONE", -1, -1, "undefined", "undefined cartesian coordinate reference system"},
		{"Undefined geographic SRS", "NONE", 0, 0, "undefined", "undefined geographic coordinate reference system"},
	}
	for _, s := range srs {
		if _, err := db.Exec(`INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, ?, ?)`,
			s.name, s.id, s.org, s.orgID, s.def, s.desc); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, last_change, srs_id) VALUES (?, 'features', ?, ?, ?)`,
		GeoPackageLayer, GeoPackageLayer, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), wgs84SRSID); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'POINT', ?, 0, 0)`,
		GeoPackageLayer, wgs84SRSID)
	return err
}

// encodePoint builds a GeoPackage geometry blob: the "GP" header without an
// envelope followed by standard WKB.
func encodePoint(lon, lat float64) ([]byte, error) {
	body, err := wkb.Encode(geom.Point{X: lon, Y: lat}, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 8, 8+len(body))
	blob[0], blob[1] = 'G', 'P'
	blob[2] = 0    // version 1
	blob[3] = 0x01 // little-endian header, no envelope
	binary.LittleEndian.PutUint32(blob[4:], uint32(int32(wgs84SRSID)))
	return append(blob, body...), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
