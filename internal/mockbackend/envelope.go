// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mockbackend

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Variant selects which response envelope the server emits.
type Variant string

const (
	// VariantFlag wraps payloads as {success, code, message, data, timestamp}.
	VariantFlag Variant = "a"

	// VariantNumeric wraps payloads as {code, message, data} with code 0 on
	// success.
	VariantNumeric Variant = "b"
)

// ParseVariant accepts "a"/"flag" and "b"/"numeric". Empty means VariantFlag.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a", "flag":
		return VariantFlag, nil
	case "b", "numeric":
		return VariantNumeric, nil
	default:
		return "", fmt.Errorf("unknown envelope variant %q (want a or b)", s)
	}
}

// failureCode is the numeric code sent in variant (b) failures.
const failureCode = 500

// envelope builds the success body for data.
func (v Variant) envelope(data any) gin.H {
	if v == VariantNumeric {
		return gin.H{"code": 0, "message": "ok", "data": data}
	}
	return gin.H{
		"success":   true,
		"code":      "SUCCESS",
		"message":   "success",
		"data":      data,
		"timestamp": time.Now().Format("2006-01-02T15:04:05.000"),
	}
}

// failure builds the failure body carrying message.
func (v Variant) failure(message string) gin.H {
	if v == VariantNumeric {
		return gin.H{"code": failureCode, "message": message, "data": nil}
	}
	return gin.H{
		"success":   false,
		"code":      "ERROR",
		"message":   message,
		"timestamp": time.Now().Format("2006-01-02T15:04:05.000"),
	}
}

// respond writes data in the configured envelope with status 200, which is
// how the backend reports application failures as well.
func (s *Server) respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, s.cfg.Variant.envelope(data))
}

func (s *Server) respondFailure(c *gin.Context, message string) {
	c.JSON(http.StatusOK, s.cfg.Variant.failure(message))
}
