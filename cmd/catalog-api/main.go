// Package main is the entry point for the Backstage catalog API server.
package main

import (
	"os"

	"github.com/eda-mesh/backstage-catalog-api/cmd/catalog-api/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
