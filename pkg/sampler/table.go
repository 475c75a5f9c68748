package sampler

import (
	"github.com/eunmann/geodata-harvester/pkg/points"
)

// Coordinate column names leading every table.
const (
	LonColumn = "Longitude"
	LatColumn = "Latitude"
)

// Table holds one row per query point: the two coordinate columns followed
// by one value column per sampled band. Values are stored column-major.
type Table struct {
	Points  []points.Point
	Columns []string
	Values  [][]float64
}

func newTable(pts []points.Point) *Table {
	return &Table{Points: pts}
}

// NumRows returns the number of query points.
func (t *Table) NumRows() int {
	return len(t.Points)
}

// NumCols returns the number of columns including the coordinates.
func (t *Table) NumCols() int {
	return len(t.Columns) + 2
}

// Header returns every column name in order.
func (t *Table) Header() []string {
	return append([]string{LonColumn, LatColumn}, t.Columns...)
}

// Row returns the values of row i, coordinates first.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, 0, t.NumCols())
	row = append(row, t.Points[i].Lon, t.Points[i].Lat)
	for _, col := range t.Values {
		row = append(row, col[i])
	}
	return row
}

// Column returns the values of the named value column.
func (t *Table) Column(name string) ([]float64, bool) {
	for i, c := range t.Columns {
		if c == name {
			return t.Values[i], true
		}
	}
	return nil, false
}

func (t *Table) add(name string, values []float64) {
	t.Columns = append(t.Columns, name)
	t.Values = append(t.Values, values)
}
