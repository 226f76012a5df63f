package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/r-ms/detect-spam/internal/app"
	"github.com/r-ms/detect-spam/internal/classifier"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [text]",
		Short: "Classify one text and print the verdict as JSON",
		Long:  "Classify one text without starting the server. Use \"-\" or no argument to read the text from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			container, err := app.BuildContainer(*configPath)
			if err != nil {
				return err
			}
			defer app.Close(container)

			return container.Invoke(func(svc *classifier.Service) error {
				res, err := svc.Check(cmd.Context(), text)
				if err != nil {
					return fmt.Errorf("check: %w", err)
				}

				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
