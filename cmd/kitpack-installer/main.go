package main

import "github.com/ovoloshchuk/kitpack/cmd/kitpack-installer/cmd"

func main() {
	cmd.Execute()
}
