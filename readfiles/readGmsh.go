package readfiles

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/gosubsurface/mesh"
)

const (
	gmshLine     = 1
	gmshTriangle = 2
	gmshPoint    = 15
)

// ReadGmsh22 reads an ASCII Gmsh 2.2 mesh. Triangles take their physical tag as region
// marker, line elements with a nonzero physical tag become boundary markers carrying the
// physical tag, labelled from $PhysicalNames. Tagged lines that lie inside the domain,
// such as layer interfaces, are dropped.
func ReadGmsh22(r io.Reader) (tm *mesh.TriMesh, err error) {
	var (
		lr      = newLineReader(r, "gmsh")
		b       = mesh.Builder{DropInterior: true, Boundary: make(map[int][][2]int), Labels: make(map[int]string)}
		nodeIdx map[int]int
		lines   []gmshElement
		line    string
		ok      bool
		format  bool
	)
	for {
		if line, ok = lr.next(); !ok {
			break
		}
		switch line {
		case "$MeshFormat":
			if err = readMeshFormat22(lr); err != nil {
				return
			}
			format = true
		case "$PhysicalNames":
			if err = readPhysicalNames(lr, b.Labels); err != nil {
				return
			}
		case "$Nodes":
			if b.Nodes, nodeIdx, err = readNodes22(lr); err != nil {
				return
			}
		case "$Elements":
			var elems []gmshElement
			if elems, err = readElements22(lr); err != nil {
				return
			}
			for _, el := range elems {
				switch el.typ {
				case gmshTriangle:
					b.Tris = append(b.Tris, [3]int{el.nodes[0], el.nodes[1], el.nodes[2]})
					b.Regions = append(b.Regions, el.physical)
				case gmshLine:
					lines = append(lines, el)
				}
			}
		default:
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				// $NodeData, $ElementData and friends carry no topology
				if err = lr.skipTo("$End" + line[1:]); err != nil {
					return
				}
			}
		}
	}
	if err = lr.scanner.Err(); err != nil {
		return
	}
	if !format {
		return nil, lr.errorf("could not find $MeshFormat section")
	}
	if nodeIdx == nil || len(b.Tris) == 0 {
		return nil, lr.errorf("no nodes or no triangles found")
	}
	remap := func(id int) (int, error) {
		if i, ok := nodeIdx[id]; ok {
			return i, nil
		}
		return 0, lr.errorf("element references unknown node %d", id)
	}
	for k := range b.Tris {
		for j, id := range b.Tris[k] {
			if b.Tris[k][j], err = remap(id); err != nil {
				return
			}
		}
	}
	for _, el := range lines {
		if el.physical == 0 {
			continue
		}
		var e [2]int
		for j := 0; j < 2; j++ {
			if e[j], err = remap(el.nodes[j]); err != nil {
				return
			}
		}
		b.Boundary[el.physical] = append(b.Boundary[el.physical], e)
	}
	return b.Build()
}

func ReadGmsh22File(filename string) (tm *mesh.TriMesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	return ReadGmsh22(file)
}

type gmshElement struct {
	typ      int
	physical int
	nodes    []int
}

func readMeshFormat22(lr *lineReader) (err error) {
	var f []string
	if f, err = lr.fields(3); err != nil {
		return
	}
	if !strings.HasPrefix(f[0], "2.") {
		return lr.errorf("unsupported Gmsh format version: %s", f[0])
	}
	if f[1] != "0" {
		return lr.errorf("binary Gmsh files are not supported")
	}
	return lr.skipTo("$EndMeshFormat")
}

// readPhysicalNames records the names of 1D physical groups, which label boundary markers
func readPhysicalNames(lr *lineReader, labels map[int]string) (err error) {
	var (
		f             []string
		num, dim, tag int
	)
	if f, err = lr.fields(1); err != nil {
		return
	}
	if num, err = lr.atoi(f[0]); err != nil {
		return
	}
	for i := 0; i < num; i++ {
		if f, err = lr.fields(3); err != nil {
			return
		}
		if dim, err = lr.atoi(f[0]); err != nil {
			return
		}
		if tag, err = lr.atoi(f[1]); err != nil {
			return
		}
		if dim == 1 {
			labels[tag] = strings.Trim(strings.Join(f[2:], " "), "\"")
		}
	}
	return lr.skipTo("$EndPhysicalNames")
}

func readNodes22(lr *lineReader) (nodes []mesh.Point, nodeIdx map[int]int, err error) {
	var (
		f       []string
		num, id int
	)
	if f, err = lr.fields(1); err != nil {
		return
	}
	if num, err = lr.atoi(f[0]); err != nil {
		return
	}
	nodes = make([]mesh.Point, num)
	nodeIdx = make(map[int]int, num)
	for i := 0; i < num; i++ {
		if f, err = lr.fields(3); err != nil {
			return
		}
		if id, err = lr.atoi(f[0]); err != nil {
			return
		}
		if _, dup := nodeIdx[id]; dup {
			err = lr.errorf("node %d repeated", id)
			return
		}
		nodeIdx[id] = i
		for d := 0; d < 2; d++ {
			if nodes[i][d], err = lr.atof(f[1+d]); err != nil {
				return
			}
		}
	}
	err = lr.skipTo("$EndNodes")
	return
}

func readElements22(lr *lineReader) (elems []gmshElement, err error) {
	var (
		f                 []string
		num, typ, numTags int
	)
	if f, err = lr.fields(1); err != nil {
		return
	}
	if num, err = lr.atoi(f[0]); err != nil {
		return
	}
	for i := 0; i < num; i++ {
		if f, err = lr.fields(3); err != nil {
			return
		}
		if typ, err = lr.atoi(f[1]); err != nil {
			return
		}
		if numTags, err = lr.atoi(f[2]); err != nil {
			return
		}
		var numNodes int
		switch typ {
		case gmshLine:
			numNodes = 2
		case gmshTriangle:
			numNodes = 3
		case gmshPoint:
			continue
		default:
			return nil, lr.errorf("element type %d, only points, lines and triangles are supported", typ)
		}
		if len(f) < 3+numTags+numNodes {
			return nil, lr.errorf("element %s: expected %d tags and %d nodes", f[0], numTags, numNodes)
		}
		el := gmshElement{typ: typ, nodes: make([]int, numNodes)}
		if numTags > 0 {
			if el.physical, err = lr.atoi(f[3]); err != nil {
				return
			}
		}
		for j := 0; j < numNodes; j++ {
			if el.nodes[j], err = lr.atoi(f[3+numTags+j]); err != nil {
				return
			}
		}
		elems = append(elems, el)
	}
	err = lr.skipTo("$EndElements")
	return
}
