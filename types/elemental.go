package types

import (
	"fmt"

	"fortio.org/safecast"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		packedV [2]uint32
		err     error
	)
	for i, vert := range verts {
		if packedV[i], err = safecast.Conv[uint32](vert); err != nil {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs: %w",
				verts[0], verts[1], err))
		}
	}
	i1, i2 := packedV[0], packedV[1]
	if i1 > i2 {
		i1, i2 = i2, i1
	}
	packed = EdgeKey(uint64(i1) + uint64(i2)<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}
