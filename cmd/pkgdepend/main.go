package main

import "pkgdepend/internal/cli"

func main() {
	cli.Execute()
}
