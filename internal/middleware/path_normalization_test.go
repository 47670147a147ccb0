package middleware

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		// Static routes - no normalization
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "recalculate endpoint",
			path:     "/scores/recalculate",
			expected: "/scores/recalculate",
		},
		{
			name:     "seeding preview",
			path:     "/seeding/preview",
			expected: "/seeding/preview",
		},
		{
			name:     "seeding execute",
			path:     "/seeding/execute",
			expected: "/seeding/execute",
		},
		{
			name:     "effective score endpoint",
			path:     "/effects/effective",
			expected: "/effects/effective",
		},
		{
			name:     "policies collection",
			path:     "/policies",
			expected: "/policies",
		},
		{
			name:     "health endpoint",
			path:     "/health",
			expected: "/health",
		},
		{
			name:     "ready endpoint",
			path:     "/ready",
			expected: "/ready",
		},
		{
			name:     "metrics endpoint",
			path:     "/metrics",
			expected: "/metrics",
		},

		// Score patterns
		{
			name:     "involvement by person id",
			path:     "/scores/involvement/p-123",
			expected: "/scores/involvement/{personId}",
		},
		{
			name:     "involvement by uuid",
			path:     "/scores/involvement/550e8400-e29b-41d4-a716-446655440000",
			expected: "/scores/involvement/{personId}",
		},
		{
			name:     "involvement recalculate",
			path:     "/scores/involvement/p-123/recalculate",
			expected: "/scores/involvement/{personId}/recalculate",
		},
		{
			name:     "loyalty by person id",
			path:     "/scores/loyalty/p-456",
			expected: "/scores/loyalty/{personId}",
		},
		{
			name:     "loyalty pair",
			path:     "/scores/loyalty/p-456/f-guild",
			expected: "/scores/loyalty/{personId}/{targetId}",
		},
		{
			name:     "loyalty top",
			path:     "/scores/loyalty/p-456/top",
			expected: "/scores/loyalty/{personId}/top",
		},
		{
			name:     "histogram endpoint",
			path:     "/scores/histogram",
			expected: "/scores/histogram",
		},

		// Policy patterns
		{
			name:     "policy by id",
			path:     "/policies/pol-123",
			expected: "/policies/{id}",
		},
		{
			name:     "policy by uuid",
			path:     "/policies/550e8400-e29b-41d4-a716-446655440000",
			expected: "/policies/{id}",
		},

		// Edge cases
		{
			name:     "trailing slash on collection",
			path:     "/policies/",
			expected: "/policies/",
		},
		{
			name:     "unknown route",
			path:     "/unknown/path",
			expected: "/unknown/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizePath(tt.path)
			if result != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestNormalizePath_CardinalityControl(t *testing.T) {
	// Test that different IDs normalize to the same pattern
	paths := []string{
		"/scores/loyalty/1",
		"/scores/loyalty/2",
		"/scores/loyalty/999",
		"/scores/loyalty/550e8400-e29b-41d4-a716-446655440000",
		"/scores/loyalty/abc-def-ghi",
	}

	expected := "/scores/loyalty/{personId}"
	seen := make(map[string]bool)

	for _, path := range paths {
		result := normalizePath(path)
		if result != expected {
			t.Errorf("normalizePath(%q) = %q, want %q", path, result, expected)
		}
		seen[result] = true
	}

	// Should all normalize to the same pattern (low cardinality)
	if len(seen) != 1 {
		t.Errorf("Expected all paths to normalize to single pattern, got %d patterns: %v", len(seen), seen)
	}
}
