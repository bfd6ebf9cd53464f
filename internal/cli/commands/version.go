package commands

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the catalogc version, the Go toolchain it was built with,
and the source revision when the binary carries VCS build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			info, _ := debug.ReadBuildInfo()
			writeVersion(cmd.OutOrStdout(), version, info)
		},
	}
}

func writeVersion(w io.Writer, version string, info *debug.BuildInfo) {
	_, _ = fmt.Fprintf(w, "catalogc v%s\n", version)
	_, _ = fmt.Fprintln(w, "Catalog validator for declarative data pipelines")
	_, _ = fmt.Fprintf(w, "go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if info == nil {
		return
	}

	var revision, at string
	modified := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if revision == "" {
		return
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified {
		revision += " (modified)"
	}
	_, _ = fmt.Fprintf(w, "revision: %s\n", revision)
	if at != "" {
		_, _ = fmt.Fprintf(w, "built:    %s\n", at)
	}
}
