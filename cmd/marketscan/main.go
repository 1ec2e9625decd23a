package main

import "github.com/andrescamacho/marketscan-go/internal/adapters/cli"

func main() {
	cli.Execute()
}
