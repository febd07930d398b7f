// Command silo manages declarative models over SQL databases.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/syssam/silo/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
