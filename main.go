package main

import "github.com/kiesman99/rstile/cmd"

func main() {
	cmd.Execute()
}
