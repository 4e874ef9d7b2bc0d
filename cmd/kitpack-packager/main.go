package main

import "github.com/ovoloshchuk/kitpack/cmd/kitpack-packager/cmd"

func main() {
	cmd.Execute()
}
