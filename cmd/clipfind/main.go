package main

import "clipfind/internal/cli"

func main() {
	cli.Execute()
}
