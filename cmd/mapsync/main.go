// Command mapsync keeps a map engine in step with a declarative CUE scene.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mapsync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
