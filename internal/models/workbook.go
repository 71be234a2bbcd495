package models

// Sheet is one worksheet of an export: ordered headers, rows of cell text and
// per-column widths in characters
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
	Widths  []float64
}
