package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load IPO listings from a JSON file into the catalog",
		Long: `Seed reads a JSON array of listings in the same shape POST /api/ipo accepts and
creates every listing whose name is not already in the catalog. Invalid entries are logged
and skipped.`,
		Example: `  ipo-tracker seed --file ipos.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			inputs, err := readSeedFile(path)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			created, err := app.Catalog.Seed(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"file":    path,
				"total":   len(inputs),
				"created": created,
			}).Info("Catalog seed completed")
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d listings\n", created, len(inputs))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "path to a JSON array of listings")
	cmd.MarkFlagRequired("file")
	return cmd
}

func readSeedFile(path string) ([]services.CreateIPOInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var inputs []services.CreateIPOInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return inputs, nil
}
