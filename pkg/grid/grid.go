// Package grid maps linear indexes onto row-major cell grids.
package grid

// GetGridCoords returns the column and row of index in a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// CellOrigin returns the pixel position of the top-left corner of the cell
// that holds index.
func CellOrigin(index, cols, cellW, cellH int) (px, py int) {
	x, y := GetGridCoords(index, cols)
	return x * cellW, y * cellH
}
