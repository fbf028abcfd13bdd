package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapi/internal/auth"
	"github.com/eleven-am/todoapi/pkg/todoapi"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display todoapi version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), todoapi.FullVersionInfo())
		},
	}
}

func newSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a token signing secret",
		Long:  "Print a random base64 key suitable for SECRET_KEY or auth.secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := auth.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}
