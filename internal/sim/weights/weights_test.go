package weights

import (
	"fmt"
	"testing"

	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/draw"
)

func testTiles(t *testing.T, ys ...float64) *catalogs.Tiles {
	t.Helper()
	defs := make([]catalogs.TileDef, len(ys))
	for i, y := range ys {
		defs[i] = catalogs.TileDef{ID: fmt.Sprintf("t%d", i), X: 1, Y: y}
	}
	tiles, err := catalogs.NewTiles(defs)
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	return tiles
}

func TestNew_SeedsFromBaseline(t *testing.T) {
	tiles := testTiles(t, 0.1, 0.5, 0.9)
	tab := New(tiles)
	for i, d := range tiles.Defs {
		if tab.At(i) != d.Y {
			t.Fatalf("weight[%d]=%v want %v", i, tab.At(i), d.Y)
		}
	}
}

func TestUpdate_UnitFactorsRestoreBaseline(t *testing.T) {
	tiles := testTiles(t, 0.1, 0.5, 0.9, 0.0, 1.0)
	tab := New(tiles)
	if err := tab.Update(tiles, draw.NewSet(0, 2), 1.3, 0.2); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tab.Update(tiles, draw.NewSet(1, 4), 1.0, 1.0); err != nil {
		t.Fatalf("update: %v", err)
	}
	for i, d := range tiles.Defs {
		if tab.At(i) != d.Y {
			t.Fatalf("weight[%d]=%v want baseline %v", i, tab.At(i), d.Y)
		}
	}
}

func TestUpdate_Clamped(t *testing.T) {
	tiles := testTiles(t, 0.2, 0.6, 0.9, 1.0)
	tab := New(tiles)
	for _, grow := range []float64{0, 0.5, 1, 1.05, 2, 50} {
		if err := tab.Update(tiles, draw.NewSet(0, 1, 2, 3), grow, 1); err != nil {
			t.Fatalf("update: %v", err)
		}
		for i := 0; i < tab.Len(); i++ {
			if w := tab.At(i); w > 1.0 || w < 0 {
				t.Fatalf("grow=%v weight[%d]=%v outside [0,1]", grow, i, w)
			}
		}
	}
	for _, shrink := range []float64{0, 0.5, 0.95, 1} {
		if err := tab.Update(tiles, draw.NewSet(), 1, shrink); err != nil {
			t.Fatalf("update: %v", err)
		}
		for i := 0; i < tab.Len(); i++ {
			if w := tab.At(i); w < 0 || w > 1 {
				t.Fatalf("shrink=%v weight[%d]=%v outside [0,1]", shrink, i, w)
			}
		}
	}
}

func TestUpdate_DoesNotCompound(t *testing.T) {
	tiles := testTiles(t, 0.5)
	tab := New(tiles)
	for week := 0; week < 10; week++ {
		if err := tab.Update(tiles, draw.NewSet(0), 1.5, 0.5); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if tab.At(0) != 0.75 {
		t.Fatalf("weight=%v want 0.75 after repeated growth", tab.At(0))
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	tiles := testTiles(t, 0.5, 0.5)
	tab := New(tiles)
	snap := tab.Snapshot()
	if err := tab.Update(tiles, draw.NewSet(0), 2, 0); err != nil {
		t.Fatalf("update: %v", err)
	}
	if snap[0] != 0.5 || snap[1] != 0.5 {
		t.Fatalf("snapshot changed: %v", snap)
	}
	if tab.At(0) != 1.0 || tab.At(1) != 0 {
		t.Fatalf("live table=%v,%v", tab.At(0), tab.At(1))
	}
}

func TestUpdate_LengthMismatch(t *testing.T) {
	tab := New(testTiles(t, 0.5))
	if err := tab.Update(testTiles(t, 0.5, 0.5), draw.NewSet(), 1, 1); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}
