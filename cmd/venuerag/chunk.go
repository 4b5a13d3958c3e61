package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newChunkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk [files...]",
		Short: "Split text into overlapping chunks",
		Long: `Split .txt and .md files (glob patterns allowed) into chunks and print them
as JSON. Without arguments the text is read from stdin and printed as a JSON
array of strings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			var out any
			if len(args) == 0 {
				text, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				chunks := svc.Split(string(text))
				if chunks == nil {
					chunks = []string{}
				}
				out = chunks
			} else {
				chunks, err := svc.ChunkFiles(args)
				if err != nil {
					return err
				}
				out = chunks
			}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal chunks: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
