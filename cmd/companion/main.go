package main

import "github.com/caiga/companion/internal/cmd"

func main() {
	cmd.Execute()
}
