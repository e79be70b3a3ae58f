//go:build netlib && cgo

package utils

/*
#cgo LDFLAGS: -lopenblas -llapacke -lgfortran -lm -lpthread
#include <cblas.h>
#include <lapacke.h>
*/
import "C"

import (
	"gonum.org/v1/gonum/blas/blas64"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// Build with -tags netlib to route the dense direct factorizations through OpenBLAS
func init() {
	blas64.Use(netblas.Implementation{})
}

// BLASBackend names the BLAS implementation behind gonum
const BLASBackend = "netlib"
