package grid

import (
	"strings"

	"gridcourier/internal/domain"
)

// FromASCII builds a grid from a rows-first sketch, top row first. Cells
// are whitespace-separated: `.` walkable, `#` non-walkable, `D` delivery,
// `P` parcel generator. Any other rune is walkable and reported in the
// marker map so callers can place agents or parcels on it.
func FromASCII(rows ...string) (*Grid, map[rune][]domain.Point) {
	markers := make(map[rune][]domain.Point)
	var tiles []Tile
	height := len(rows)
	width := 0
	for r, row := range rows {
		cells := strings.Fields(row)
		if len(cells) > width {
			width = len(cells)
		}
		y := height - 1 - r
		for x, cell := range cells {
			tileType := domain.TileWalkable
			switch cell {
			case "#":
				tileType = domain.TileNonWalkable
			case "D":
				tileType = domain.TileDelivery
			case "P":
				tileType = domain.TileParcelGenerator
			case ".":
			default:
				markers[rune(cell[0])] = append(markers[rune(cell[0])], domain.Point{X: x, Y: y})
			}
			tiles = append(tiles, Tile{X: x, Y: y, Type: int(tileType)})
		}
	}
	return New(width, height, tiles), markers
}
