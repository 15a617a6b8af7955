package main

import "github.com/tnanh/mira/cmd/mira/cli"

func main() {
	cli.Execute()
}
