package main

import (
	"github.com/onflow/hotshot/cmd/util/cmd"
)

func main() {
	cmd.Execute()
}
