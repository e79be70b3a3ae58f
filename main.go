package main

import "github.com/notargets/gosubsurface/cmd"

func main() {
	cmd.Execute()
}
