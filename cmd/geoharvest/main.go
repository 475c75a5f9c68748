// Command geoharvest harvests, aggregates and samples geospatial rasters.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/geodata-harvester/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
