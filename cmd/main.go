// Package main is the entry point for the authorization service binary.
package main

import (
	"os"

	"github.com/eaglebank/authorization-service/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
