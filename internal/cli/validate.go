package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// uuidArg validates that the single positional argument is a well-formed
// UUID before any network request is made, so a typo surfaces immediately
// instead of as a confusing 404 from the metadata store.
func uuidArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if _, err := uuid.Parse(args[0]); err != nil {
		return fmt.Errorf("invalid pipeline UUID %q: %w", args[0], err)
	}
	return nil
}

// validateRegenerateUUIDs checks every --regenerate value is a well-formed
// UUID, for the same reason uuidArg checks the positional argument.
func validateRegenerateUUIDs(values []string) error {
	for _, v := range values {
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("invalid --regenerate UUID %q: %w", v, err)
		}
	}
	return nil
}
