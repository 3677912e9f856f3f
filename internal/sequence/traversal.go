package sequence

import "math/rand"

// Cell is one grid coordinate paired with the step index that produced it.
type Cell struct {
	Col   int `json:"col"`
	Row   int `json:"row"`
	Frame int `json:"frame"`
}

// buildTable materializes the ordered coordinate list for a non-sequential
// traversal, padded by cyclic repetition and truncated to totalFrames.
func buildTable(order Order, gridSize, totalFrames int, rng *rand.Rand) []Cell {
	var base []Cell
	switch order {
	case OrderSpiral:
		base = spiralCells(gridSize)
	case OrderDiagonal:
		base = diagonalCells(gridSize)
	case OrderRandom:
		base = shuffledCells(gridSize, rng)
	default:
		return nil
	}

	table := make([]Cell, totalFrames)
	for i := range table {
		c := base[i%len(base)]
		table[i] = Cell{Col: c.Col, Row: c.Row, Frame: i}
	}
	return table
}

// spiralCells walks concentric rings clockwise from the outer boundary in.
func spiralCells(gridSize int) []Cell {
	cells := make([]Cell, 0, gridSize*gridSize)
	top, bottom := 0, gridSize-1
	left, right := 0, gridSize-1

	for top <= bottom && left <= right {
		for col := left; col <= right; col++ {
			cells = append(cells, Cell{Col: col, Row: top})
		}
		for row := top + 1; row <= bottom; row++ {
			cells = append(cells, Cell{Col: right, Row: row})
		}
		if top < bottom {
			for col := right - 1; col >= left; col-- {
				cells = append(cells, Cell{Col: col, Row: bottom})
			}
		}
		if left < right {
			for row := bottom - 1; row > top; row-- {
				cells = append(cells, Cell{Col: left, Row: row})
			}
		}
		top++
		bottom--
		left++
		right--
	}
	return cells
}

// diagonalCells sweeps anti-diagonals of increasing index.
func diagonalCells(gridSize int) []Cell {
	cells := make([]Cell, 0, gridSize*gridSize)
	for d := 0; d <= 2*(gridSize-1); d++ {
		rowStart := 0
		if d >= gridSize {
			rowStart = d - gridSize + 1
		}
		rowEnd := d
		if rowEnd > gridSize-1 {
			rowEnd = gridSize - 1
		}
		for row := rowStart; row <= rowEnd; row++ {
			cells = append(cells, Cell{Col: d - row, Row: row})
		}
	}
	return cells
}

// shuffledCells returns one Fisher-Yates shuffle of every coordinate, fixed
// for the session.
func shuffledCells(gridSize int, rng *rand.Rand) []Cell {
	cells := make([]Cell, 0, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			cells = append(cells, Cell{Col: col, Row: row})
		}
	}
	rng.Shuffle(len(cells), func(i, j int) {
		cells[i], cells[j] = cells[j], cells[i]
	})
	return cells
}
