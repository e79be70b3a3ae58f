package readfiles

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/gosubsurface/mesh"
)

/*
ReadGambit2D reads a 2D Gambit neutral file. Material groups become region markers
using the group number, boundary condition sets become boundary markers numbered 1..n
in the order they appear with the set name as the marker label.

	        CONTROL INFO 2.0.0
	** GAMBIT NEUTRAL FILE
	...
	     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
	         4         2         1         1         2         2
	ENDOFSECTION
	   NODAL COORDINATES 2.0.0
	         1   0.0   0.0
	...
	      ELEMENTS/CELLS 2.0.0
	         1  3  3        1       2       3
	...
	       ELEMENT GROUP 2.0.0
	GROUP:           1 ELEMENTS:          2 MATERIAL:      1.000 NFLAGS:          0
	                  sand
	       0
	         1         2
	ENDOFSECTION
	 BOUNDARY CONDITIONS 2.0.0
	                 left       1       1       0       6
	         1          3          3
	ENDOFSECTION
*/
func ReadGambit2D(r io.Reader) (tm *mesh.TriMesh, err error) {
	var (
		lr                     = newLineReader(r, "gambit")
		Nv, K, Nmats, Nbcs, Nsd int
		b                      mesh.Builder
		markers                = newMarkerSet()
		line                   string
		ok                     bool
	)
	if Nv, K, Nmats, Nbcs, Nsd, err = readHeader(lr); err != nil {
		return
	}
	if Nsd != 2 {
		return nil, lr.errorf("space dimensions %d, only 2D meshes are supported", Nsd)
	}
	b.Regions = make([]int, K)
	for k := range b.Regions {
		b.Regions[k] = 1
	}
	for {
		if line, ok = lr.next(); !ok {
			break
		}
		switch {
		case strings.Contains(line, "NODAL COORDINATES"):
			if b.Nodes, err = read2DVertices(lr, Nv); err != nil {
				return
			}
		case strings.Contains(line, "ELEMENTS/CELLS"):
			if b.Tris, err = readTris(lr, K); err != nil {
				return
			}
		case strings.Contains(line, "ELEMENT GROUP"):
			if Nmats--; Nmats < 0 {
				return nil, lr.errorf("more material groups than declared")
			}
			if err = readMaterialGroup(lr, b.Regions); err != nil {
				return
			}
		case strings.Contains(line, "BOUNDARY CONDITIONS"):
			if Nbcs--; Nbcs < 0 {
				return nil, lr.errorf("more boundary condition sets than declared")
			}
			if b.Tris == nil {
				return nil, lr.errorf("boundary conditions precede the element section")
			}
			if err = readBCS(lr, b.Tris, markers); err != nil {
				return
			}
		}
	}
	if err = lr.scanner.Err(); err != nil {
		return
	}
	if b.Nodes == nil || b.Tris == nil {
		return nil, lr.errorf("missing nodal coordinates or element section")
	}
	b.Boundary, b.Labels = markers.edges, markers.labels
	return b.Build()
}

func ReadGambit2DFile(filename string) (tm *mesh.TriMesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	return ReadGambit2D(file)
}

func readHeader(lr *lineReader) (Nv, K, Nmats, Nbcs, Nsd int, err error) {
	/*
		Nv      // num nodes in mesh
		K       // num elements
		Nmats   // num material groups
		Nbcs    // num boundary groups
		Nsd;    // num space dimensions
	*/
	for {
		var line string
		if line, err = lr.getLine(); err != nil {
			return
		}
		if strings.Contains(line, "NUMNP") && strings.Contains(line, "NELEM") {
			break
		}
	}
	var f []string
	if f, err = lr.fields(5); err != nil {
		return
	}
	vals := make([]int, 5)
	for i := range vals {
		if vals[i], err = lr.atoi(f[i]); err != nil {
			return
		}
	}
	Nv, K, Nmats, Nbcs, Nsd = vals[0], vals[1], vals[2], vals[3], vals[4]
	if Nv < 3 || K < 1 || Nmats < 0 || Nbcs < 0 {
		err = lr.errorf("invalid header counts %v", vals)
	}
	return
}

func read2DVertices(lr *lineReader, Nv int) (nodes []mesh.Point, err error) {
	var (
		f    []string
		ind  int
		seen = make([]bool, Nv)
	)
	nodes = make([]mesh.Point, Nv)
	for i := 0; i < Nv; i++ {
		if f, err = lr.fields(3); err != nil {
			return
		}
		if ind, err = lr.atoi(f[0]); err != nil {
			return
		}
		if ind < 1 || ind > Nv || seen[ind-1] {
			return nil, lr.errorf("node index %d out of range or repeated", ind)
		}
		seen[ind-1] = true
		for d := 0; d < 2; d++ {
			if nodes[ind-1][d], err = lr.atof(f[1+d]); err != nil {
				return
			}
		}
	}
	return
}

func readTris(lr *lineReader, K int) (tris [][3]int, err error) {
	//-------------------------------------
	// Triangles:
	//-------------------------------------
	//    ELEMENTS/CELLS 2.0.0
	//      1  3  3        1       2       3
	//      2  3  3        3       2       4
	var (
		f        []string
		ind, typ int
	)
	tris = make([][3]int, K)
	for i := 0; i < K; i++ {
		if f, err = lr.fields(6); err != nil {
			return
		}
		if ind, err = lr.atoi(f[0]); err != nil {
			return
		}
		if typ, err = lr.atoi(f[1]); err != nil {
			return
		}
		if typ != 3 {
			return nil, lr.errorf("element %d has type %d, only triangles (3) are supported", ind, typ)
		}
		if ind < 1 || ind > K {
			return nil, lr.errorf("element index %d out of range", ind)
		}
		for j := 0; j < 3; j++ {
			var v int
			if v, err = lr.atoi(f[3+j]); err != nil {
				return
			}
			tris[ind-1][j] = v - 1
		}
	}
	return
}

func readMaterialGroup(lr *lineReader, regions []int) (err error) {
	/*
	   GROUP:           1 ELEMENTS:        977 MATERIAL:      1.000 NFLAGS:          0
	                     epsilon: 1.000
	          0
	*/
	var (
		line       string
		gn, elnum  int
		parts      []string
		read       int
		fieldAfter = func(key string) (string, bool) {
			for i := 0; i < len(parts)-1; i++ {
				if parts[i] == key {
					return parts[i+1], true
				}
			}
			return "", false
		}
	)
	if line, err = lr.getLine(); err != nil {
		return
	}
	parts = strings.Fields(line)
	gs, ok1 := fieldAfter("GROUP:")
	es, ok2 := fieldAfter("ELEMENTS:")
	if !ok1 || !ok2 {
		return lr.errorf("bad material group header: %s", line)
	}
	if gn, err = lr.atoi(gs); err != nil {
		return
	}
	if elnum, err = lr.atoi(es); err != nil {
		return
	}
	if err = lr.skipLines(2); err != nil { // title and flags
		return
	}
	for read < elnum {
		if line, err = lr.getLine(); err != nil {
			return
		}
		if line == "ENDOFSECTION" {
			return lr.errorf("material group %d lists %d of %d elements", gn, read, elnum)
		}
		for _, s := range strings.Fields(line) {
			var k int
			if k, err = lr.atoi(s); err != nil {
				return
			}
			if k < 1 || k > len(regions) {
				return lr.errorf("material group %d references element %d", gn, k)
			}
			regions[k-1] = gn
			read++
		}
	}
	return
}

func readBCS(lr *lineReader, tris [][3]int, markers *markerSet) (err error) {
	var (
		f                 []string
		bctyp             string
		itype, numfaces   int
		kp1, faceNumberp1 int
	)
	if f, err = lr.fields(3); err != nil {
		return
	}
	bctyp = strings.ToLower(f[0])
	if itype, err = lr.atoi(f[1]); err != nil {
		return
	}
	if numfaces, err = lr.atoi(f[2]); err != nil {
		return
	}
	if itype != 1 {
		// Nodal boundary sets carry no face topology
		return lr.skipLines(numfaces)
	}
	for i := 0; i < numfaces; i++ {
		if f, err = lr.fields(3); err != nil {
			return
		}
		if kp1, err = lr.atoi(f[0]); err != nil {
			return
		}
		if faceNumberp1, err = lr.atoi(f[2]); err != nil {
			return
		}
		if kp1 < 1 || kp1 > len(tris) || faceNumberp1 < 1 || faceNumberp1 > 3 {
			return lr.errorf("boundary %s references element %d face %d", bctyp, kp1, faceNumberp1)
		}
		verts := tris[kp1-1]
		markers.add(bctyp, [2]int{verts[faceNumberp1-1], verts[faceNumberp1%3]})
	}
	return
}
