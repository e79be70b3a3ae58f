package readfiles

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/notargets/gosubsurface/mesh"
	"github.com/notargets/gosubsurface/types"
)

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string) (*mesh.TriMesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".neu":
		return ReadGambit2DFile(filename)
	case ".msh":
		return ReadGmsh22File(filename)
	case ".su2":
		return ReadSU2File(filename)
	default:
		return nil, fmt.Errorf("%w: unsupported mesh format: %s", types.ErrInvalidInput, ext)
	}
}
