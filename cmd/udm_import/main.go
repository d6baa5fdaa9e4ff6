package main

import (
	"context"   // context is cancelled when the process is interrupted
	"errors"    // errors tells row failures apart from fatal errors
	"fmt"       // fmt is used to print human-readable output to the terminal
	"os"        // os is used so we can exit with a non-zero status on error
	"os/signal" // signal stops the import on Ctrl-C or SIGTERM
	"syscall"   // syscall names SIGTERM

	"github.com/rotor-head/udm-import-update/internal/cli"
	"github.com/rotor-head/udm-import-update/internal/importer"
)

// main keeps the logic small by delegating all the real work to cli.Run.
func main() {
	// An interrupt cancels the context, which kills the tool invocation in
	// flight and stops the row loop before the next row.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Run(ctx, cli.NewEnv(), os.Args[1:])
	stop()

	// Failed rows have already been reported with the summary; anything
	// else is printed here.
	if err != nil && !errors.Is(err, importer.ErrRowsFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
