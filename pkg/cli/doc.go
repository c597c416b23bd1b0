/*
Package cli provides command-line interface utilities for Streamline.

The cli package includes the run summary printer, a progress reporter for
long fetch stages, typed command errors with their exit-code mapping, and
signal handling helpers used by the streamline command.

Exit codes: 0 on success, 2 on configuration errors, 1 on any other
failure. Use ExitCode to map an error to the right code:

	if err := cmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}

Signal handling for graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
