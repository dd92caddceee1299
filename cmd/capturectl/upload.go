package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a photo to blob storage and print its reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			uploader := c.Uploader()
			if uploader == nil {
				return fmt.Errorf("blob storage is not configured (set AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY)")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			ref, err := uploader.Upload(cmd.Context(), name, data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Blob name (defaults to the file name)")

	return cmd
}
