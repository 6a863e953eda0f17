// Command kindred runs the persistence mode controller.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/kindred/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kindred:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
