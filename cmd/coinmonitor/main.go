package main

import (
	"github.com/SiluPanda/coinmonitor/internal/cli"
)

func main() {
	cli.Execute()
}
