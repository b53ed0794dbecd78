package main

import "github.com/itsmostafa/fiddle/cmd"

func main() {
	cmd.Execute()
}
