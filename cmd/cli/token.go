package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/throttle/internal/config"
	"github.com/turtacn/throttle/internal/infrastructure/crypto"
	"github.com/turtacn/throttle/pkg/logger"
)

func newTokenCommand(load func() (*config.Config, error)) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token identifying subject, for exercising principal-keyed limits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			verifier := crypto.NewPrincipalVerifier(&cfg.JWT, logger.NewNoopLogger())
			if verifier == nil {
				return fmt.Errorf("jwt.secret is not configured")
			}
			token, err := verifier.Sign(args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
