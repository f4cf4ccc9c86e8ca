package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"wanbingo.sim/schemas"
)

// TileDef is one entry of the tile master list.
type TileDef struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Tiles is the immutable master list plus an id -> index lookup.
type Tiles struct {
	Defs   []TileDef
	Index  map[string]int
	Digest string
}

const tilesSchemaName = "tiles.schema.json"

var (
	tilesSchemaOnce sync.Once
	tilesSchema     *jsonschema.Schema
	tilesSchemaErr  error
)

func compiledTilesSchema() (*jsonschema.Schema, error) {
	tilesSchemaOnce.Do(func() {
		raw, err := schemas.Read(tilesSchemaName)
		if err != nil {
			tilesSchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(tilesSchemaName, bytes.NewReader(raw)); err != nil {
			tilesSchemaErr = err
			return
		}
		tilesSchema, tilesSchemaErr = c.Compile(tilesSchemaName)
	})
	return tilesSchema, tilesSchemaErr
}

// LoadTiles reads and validates a tiles JSON file.
func LoadTiles(path string) (*Tiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseTiles(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTiles validates raw JSON against the tiles schema and builds the catalog.
func ParseTiles(raw []byte) (*Tiles, error) {
	s, err := compiledTilesSchema()
	if err != nil {
		return nil, fmt.Errorf("tiles schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tiles.json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("tiles.json: %w", err)
	}

	var defs []TileDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("tiles.json: %w", err)
	}
	t, err := NewTiles(defs)
	if err != nil {
		return nil, err
	}
	t.Digest = sha256Hex(raw)
	return t, nil
}

// NewTiles builds a catalog from in-memory definitions. The digest covers the
// canonical JSON of the definitions.
func NewTiles(defs []TileDef) (*Tiles, error) {
	t := &Tiles{
		Defs:  make([]TileDef, len(defs)),
		Index: make(map[string]int, len(defs)),
	}
	copy(t.Defs, defs)
	for i, d := range t.Defs {
		if d.ID == "" {
			return nil, fmt.Errorf("tiles.json: empty id at %d", i)
		}
		if d.Y < 0 || d.Y > 1 {
			return nil, fmt.Errorf("tiles.json: %s: y=%v outside [0,1]", d.ID, d.Y)
		}
		if _, dup := t.Index[d.ID]; dup {
			return nil, fmt.Errorf("tiles.json: duplicate id %q", d.ID)
		}
		t.Index[d.ID] = i
	}
	b, _ := json.Marshal(t.Defs)
	t.Digest = sha256Hex(b)
	return t, nil
}

func (t *Tiles) Len() int { return len(t.Defs) }

// Lookup resolves a tile identity to its master-list index.
func (t *Tiles) Lookup(id string) (int, bool) {
	i, ok := t.Index[id]
	return i, ok
}

// Baselines returns each tile's y in master-list order.
func (t *Tiles) Baselines() []float64 {
	out := make([]float64, len(t.Defs))
	for i, d := range t.Defs {
		out[i] = d.Y
	}
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
