package main

import "github.com/binmodlabs/py2binmod/pkg/cli"

func main() {
	cli.Run()
}
