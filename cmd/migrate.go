package cmd

import (
	"fmt"

	"agro-booking/pkg/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the embedded database schema. Statements are idempotent, so running
migrate on an up to date database changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), database.Schema())
				return nil
			}

			rt, err := bootstrap(cmd.Context(), "migrate")
			if err != nil {
				return err
			}
			defer rt.close()

			if err := database.Migrate(cmd.Context(), rt.db); err != nil {
				return err
			}
			rt.logger.Info("Schema applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
