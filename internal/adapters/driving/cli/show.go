package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

var showCmd = &cobra.Command{
	Use:   "show <city>",
	Short: "Summarise a harvested city",
	Long: `Loads the saved catalog of a city and prints its summary.
The city may be given by name ("Hong Kong") or file slug ("hong_kong").`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if harvester == nil {
		return errors.New("harvester not configured")
	}

	places, err := harvester.LoadCity(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no harvest found for %s", args[0])
		}
		return fmt.Errorf("failed to load city: %w", err)
	}

	cmd.Print(renderSummary(args[0], nil, places))
	return nil
}
