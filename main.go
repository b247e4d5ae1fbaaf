package main

import "github.com/pojntfx/gtar/cmd/gtar/cmd"

func main() {
	cmd.Execute()
}
