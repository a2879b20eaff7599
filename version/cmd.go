package version

import (
	"fmt"
	"runtime"

	"github.com/projectqai/brovakt/cmd"
	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags "-X .../version.Version=...".
var Version = "dev"

var CMD = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("brovakt %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	cmd.CMD.AddCommand(CMD)
}
