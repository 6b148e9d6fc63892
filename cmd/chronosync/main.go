// chronosync computes and reconciles sync states from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chronosync/go-chronosync/cmd"
)

var (
	version string
	commit  string
	branch  string
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	ctx, cancel := cmd.Ctx(context.Background())
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	vip := viper.New()
	root := &cobra.Command{
		Use:           "chronosync",
		Short:         "Digest-based state reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommands(root, vip)
	root.AddCommand(newDigestCmd(vip), newSimCmd(vip), newVersionCmd())
	return root
}
