package main

import "github.com/ds124wfegd/bandpool/internal/cli"

func main() {
	cli.Execute()
}
