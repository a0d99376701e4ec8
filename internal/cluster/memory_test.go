// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleMemoryHint(t *testing.T) {
	tests := []struct {
		name     string
		memoryGB float64
		packSize int
		expected uint64
	}{
		{"unset memory", 0, 4, 0},
		{"negative memory", -1, 4, 0},
		{"zero pack size", 2, 0, 0},
		{"one command one gb", 1, 1, 1_000_000},
		{"four commands two gb", 2, 4, 8_000_000},
		{"fractional rounds up", 0.0000015, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScaleMemoryHint(tt.memoryGB, tt.packSize))
		})
	}
}
