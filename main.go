package main

import "github.com/reelcut/reelcut/internal/cli"

func main() {
	cli.Main()
}
