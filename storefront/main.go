package main

import (
	"os"

	"gitlab.connectwisedev.com/storefront-service/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
