package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantErr  error
		expected string
	}{
		{name: "valid empty query", query: "", expected: ""},
		{name: "valid simple query", query: "john", expected: "john"},
		{name: "trims whitespace", query: "  john doe ", expected: "john doe"},
		{name: "valid email-like query", query: "john@example.com", expected: "john@example.com"},
		{name: "valid punctuation", query: "john-doe_123+test", expected: "john-doe_123+test"},
		{name: "apostrophe in name", query: "O'Brien", expected: "O'Brien"},
		{name: "keyword inside a word", query: "Andrew Updated", expected: "Andrew Updated"},
		{name: "literal percent", query: "john%", expected: "john%"},
		{name: "unicode letters", query: "Jos\u00e9", expected: "Jos\u00e9"},
		{name: "query too long", query: strings.Repeat("a", MaxSearchQueryLength+1), wantErr: ErrQueryTooLong},
		{name: "SQL injection - UNION", query: "john UNION SELECT * FROM users", wantErr: ErrQueryInvalid},
		{name: "SQL injection - OR condition", query: "john OR 1=1", wantErr: ErrQueryInvalid},
		{name: "SQL injection - DROP", query: "john; DROP TABLE users", wantErr: ErrQueryInvalid},
		{name: "SQL comment", query: "john --", wantErr: ErrQueryInvalid},
		{name: "XSS attempt", query: "<script>alert('xss')</script>", wantErr: ErrQueryInvalid},
		{name: "ampersand", query: "john&doe", wantErr: ErrQueryInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSearchQuery(tt.query)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValidateSearchQuery_LengthCountsRunes(t *testing.T) {
	q := strings.Repeat("\u00e9", MaxSearchQueryLength)
	got, err := ValidateSearchQuery(q)
	require.NoError(t, err)
	assert.Equal(t, q, got)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "", EscapeLike(""))
	assert.Equal(t, "john", EscapeLike("john"))
	assert.Equal(t, `john\%`, EscapeLike("john%"))
	assert.Equal(t, `jane\_test`, EscapeLike("jane_test"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
}
