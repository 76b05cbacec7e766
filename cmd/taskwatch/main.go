package main

import (
	"github.com/zazzle-agent/taskwatch/cli"
)

func main() {
	cli.Execute()
}
