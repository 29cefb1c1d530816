package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// Build variables - these will be set during build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			if short, _ := cmd.Flags().GetBool("short"); short {
				fmt.Fprintf(out, "v%s\n", Version)
				return
			}

			fmt.Fprintln(out, "MasterForge")
			fmt.Fprintln(out, strings.Repeat("-", 40))
			fmt.Fprintf(out, "Version:      v%s\n", Version)
			fmt.Fprintf(out, "Git Commit:   %s\n", GitCommit)
			fmt.Fprintf(out, "Build Time:   %s\n", BuildTime)
			fmt.Fprintf(out, "Go Version:   %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintln(out, strings.Repeat("-", 40))
		},
	}
	cmd.Flags().BoolP("short", "s", false, "print just the version number")
	return cmd
}
