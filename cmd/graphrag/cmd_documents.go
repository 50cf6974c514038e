// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graphrag"
)

func newUploadCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload documents into the knowledge graph",
		Long: `Upload one or more documents. A single file goes to the single upload
endpoint; several files are sent together in one batch request.

Examples:
  graphrag upload notes/enigma.md
  graphrag upload papers/*.txt --source archive`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]graphrag.Document, 0, len(args))
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				defer f.Close()
				docs = append(docs, graphrag.Document{Name: filepath.Base(path), Reader: f})
			}
			if err := a.connect(false); err != nil {
				return err
			}

			var msg string
			err := a.errOut.WithSpinner(fmt.Sprintf("Uploading %d document(s)...", len(docs)), func() error {
				var uerr error
				if len(docs) == 1 {
					msg, uerr = a.client.UploadDocument(cmd.Context(), docs[0], source)
				} else {
					msg, uerr = a.client.UploadDocuments(cmd.Context(), docs, source)
				}
				return uerr
			})
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return a.printJSON(map[string]any{"message": msg, "files": len(docs)})
			}
			a.out.Success(msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source label stored with the documents")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "DANGER: delete every document and entity from the knowledge graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return apierr.Validation("clear", "refusing to clear the knowledge graph without --yes", nil)
			}
			if err := a.connect(false); err != nil {
				return err
			}
			msg, err := a.client.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return a.printJSON(map[string]string{"message": msg})
			}
			a.out.Success(msg)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}
