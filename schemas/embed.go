package schemas

import (
	"embed"
	"io/fs"
)

//go:embed *.schema.json
var embedded embed.FS

func FS() fs.FS {
	return embedded
}

// Read returns the raw schema document by file name (e.g. "tiles.schema.json").
func Read(name string) ([]byte, error) {
	return embedded.ReadFile(name)
}
