package main

import "repomesh/internal/cli"

func main() {
	cli.Execute()
}
