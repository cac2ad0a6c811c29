package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eaglebank/authorization-service/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and their own accounts from a YAML file",
		Long: "Creates each user in the file, or replaces an existing user's record.\n" +
			"Replacing a user clears every grant they had received.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			seedFile, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := seed.Apply(cmd.Context(), a.writeRepo, a.readRepo, seedFile, logger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users from %s\n", n, file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
