package board

// Line is five board positions that win together.
type Line [Side]int

var (
	MainDiagonal = Line{0, 6, 12, 18, 24}
	AntiDiagonal = Line{4, 8, 12, 16, 20}
)

// Lines lists every winning line: rows, columns, then both diagonals.
var Lines = func() []Line {
	out := make([]Line, 0, 2*Side+2)
	for r := 0; r < Side; r++ {
		var l Line
		for c := 0; c < Side; c++ {
			l[c] = r*Side + c
		}
		out = append(out, l)
	}
	for c := 0; c < Side; c++ {
		var l Line
		for r := 0; r < Side; r++ {
			l[r] = r*Side + c
		}
		out = append(out, l)
	}
	return append(out, MainDiagonal, AntiDiagonal)
}()

func (l Line) complete(m *Mask) bool {
	for _, p := range l {
		if !m[p] {
			return false
		}
	}
	return true
}

// HasWin reports whether any row, column or diagonal is fully confirmed.
func HasWin(m Mask) bool {
	for r := 0; r < Side; r++ {
		row := true
		for c := 0; c < Side; c++ {
			if !m[r*Side+c] {
				row = false
				break
			}
		}
		if row {
			return true
		}
	}
	for c := 0; c < Side; c++ {
		col := true
		for r := 0; r < Side; r++ {
			if !m[r*Side+c] {
				col = false
				break
			}
		}
		if col {
			return true
		}
	}
	return MainDiagonal.complete(&m) || AntiDiagonal.complete(&m)
}

// WinningLines returns every complete line in the mask.
func WinningLines(m Mask) []Line {
	var out []Line
	for _, l := range Lines {
		if l.complete(&m) {
			out = append(out, l)
		}
	}
	return out
}
