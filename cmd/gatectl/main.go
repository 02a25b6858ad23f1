package main

import "github.com/mcoot/accessgate/internal/cli"

func main() {
	cli.Execute()
}
