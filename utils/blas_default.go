//go:build !(netlib && cgo)

package utils

const BLASBackend = "gonum"
