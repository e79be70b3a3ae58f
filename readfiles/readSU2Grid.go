package readfiles

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/gosubsurface/mesh"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle                     = 5
	ELType_Quadrilateral                = 9
)

// ReadSU2 reads a 2D triangle mesh in SU2 format. Every element is placed in region 1,
// marker tags become boundary markers numbered 1..n in the order they appear
func ReadSU2(r io.Reader) (tm *mesh.TriMesh, err error) {
	var (
		lr      = newLineReader(r, "su2")
		dim     int
		b       mesh.Builder
		markers = newMarkerSet()
	)
	if dim, err = readNumber(lr, "NDIME"); err != nil {
		return
	}
	if dim != 2 {
		return nil, lr.errorf("%d dimensional data, only 2D meshes are supported", dim)
	}
	if b.Tris, err = readElements(lr); err != nil {
		return
	}
	if b.Nodes, err = readVertices(lr); err != nil {
		return
	}
	if err = readBCs(lr, markers); err != nil {
		return
	}
	b.Boundary, b.Labels = markers.edges, markers.labels
	return b.Build()
}

func ReadSU2File(filename string) (tm *mesh.TriMesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	return ReadSU2(file)
}

func readBCs(lr *lineReader, markers *markerSet) (err error) {
	var (
		NBCs, nEdges, nType int
		v1, v2              int
		label               string
		f                   []string
	)
	if NBCs, err = readNumber(lr, "NMARK"); err != nil {
		return
	}
	for n := 0; n < NBCs; n++ {
		if label, err = readLabel(lr, "MARKER_TAG"); err != nil {
			return
		}
		if nEdges, err = readNumber(lr, "MARKER_ELEMS"); err != nil {
			return
		}
		for i := 0; i < nEdges; i++ {
			if f, err = lr.fields(3); err != nil {
				return
			}
			if nType, err = lr.atoi(f[0]); err != nil {
				return
			}
			if SU2ElementType(nType) != ELType_LINE {
				return lr.errorf("marker %s: BCs should only contain line elements in 2D", label)
			}
			if v1, err = lr.atoi(f[1]); err != nil {
				return
			}
			if v2, err = lr.atoi(f[2]); err != nil {
				return
			}
			markers.add(label, [2]int{v1, v2})
		}
	}
	return
}

func readVertices(lr *lineReader) (nodes []mesh.Point, err error) {
	var (
		Nv int
		f  []string
	)
	if Nv, err = readNumber(lr, "NPOIN"); err != nil {
		return
	}
	nodes = make([]mesh.Point, Nv)
	for i := 0; i < Nv; i++ {
		if f, err = lr.fields(2); err != nil {
			return
		}
		for d := 0; d < 2; d++ {
			if nodes[i][d], err = lr.atof(f[d]); err != nil {
				return
			}
		}
	}
	return
}

func readElements(lr *lineReader) (tris [][3]int, err error) {
	var (
		K, nType int
		f        []string
	)
	if K, err = readNumber(lr, "NELEM"); err != nil {
		return
	}
	tris = make([][3]int, K)
	for k := 0; k < K; k++ {
		if f, err = lr.fields(4); err != nil {
			return
		}
		if nType, err = lr.atoi(f[0]); err != nil {
			return
		}
		if SU2ElementType(nType) != ELType_Triangle {
			return nil, lr.errorf("element type %d, only triangles are supported", nType)
		}
		for j := 0; j < 3; j++ {
			if tris[k][j], err = lr.atoi(f[1+j]); err != nil {
				return
			}
		}
	}
	return
}

// getToken returns the text after the "=" of the next keyword line, checking the keyword
func getToken(lr *lineReader, keyword string) (token string, err error) {
	var line string
	if line, err = getLineNoComments(lr); err != nil {
		return
	}
	ind := strings.Index(line, "=")
	if ind < 0 {
		return "", lr.errorf("badly formed input line [%s], should have an =", line)
	}
	if key := strings.TrimSpace(line[:ind]); key != keyword {
		return "", lr.errorf("expected %s, found %s", keyword, key)
	}
	token = strings.TrimSpace(line[ind+1:])
	return
}

func readLabel(lr *lineReader, keyword string) (label string, err error) {
	var token string
	if token, err = getToken(lr, keyword); err != nil {
		return
	}
	if f := strings.Fields(token); len(f) > 0 {
		label = f[0]
		return
	}
	return "", lr.errorf("unable to read label from token: [%s]", token)
}

func readNumber(lr *lineReader, keyword string) (num int, err error) {
	var token string
	if token, err = getToken(lr, keyword); err != nil {
		return
	}
	f := strings.Fields(token)
	if len(f) == 0 {
		return 0, lr.errorf("unable to read number from token: [%s]", token)
	}
	return lr.atoi(f[0])
}

func getLineNoComments(lr *lineReader) (line string, err error) {
	for {
		if line, err = lr.getLine(); err != nil {
			return
		}
		if line != "" && !strings.HasPrefix(line, "%") {
			return
		}
	}
}
