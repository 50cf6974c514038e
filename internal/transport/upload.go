// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
)

// FilePart is one file in a multipart upload.
type FilePart struct {
	// Field is the form field name, e.g. "file" or "files".
	Field  string
	Name   string
	Reader io.Reader
}

// Upload posts files and plain form fields as multipart/form-data and
// returns the body of a 2xx response. Errors follow the same rules as Do.
func (c *Client) Upload(ctx context.Context, op, path string, files []FilePart, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for i, f := range files {
		if f.Reader == nil {
			return nil, fmt.Errorf("%s: file %d (%s) has no reader", op, i, f.Name)
		}
		fw, err := mw.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: create form file %s: %w", op, f.Name, err)
		}
		if _, err := io.Copy(fw, f.Reader); err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", op, f.Name, err)
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fields[k] == "" {
			continue
		}
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("%s: write field %s: %w", op, k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: close multipart writer: %w", op, err)
	}

	return c.send(ctx, op, http.MethodPost, c.URL(path, nil), &buf, mw.FormDataContentType())
}
