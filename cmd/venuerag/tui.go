package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"venuerag/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse venues interactively",
		Long: `Launch the interactive terminal UI. The filter flags apply to every query.

Controls:
  Enter  - Search (an empty query lists the filtered venues)
  ↑/↓    - Navigate results
  Esc    - Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			overview, err := svc.Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("load knowledge base: %w", err)
			}

			m := tui.New(svc, filter, flags.topK, overview.String())
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	flags.register(cmd)
	return cmd
}
