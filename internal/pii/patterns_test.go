package pii

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPatterns(t *testing.T) {
	t.Run("orders by descending priority", func(t *testing.T) {
		rules, err := LoadPatterns(strings.NewReader(`
patterns:
  - name: low
    pattern: 'LOW-\d+'
    priority: 1
  - name: member_id
    pattern: 'MBR-\d{6}'
    strategy: remove
    priority: 10
    field: member
  - name: also_low
    pattern: 'AL-\d+'
    priority: 1
`))
		require.NoError(t, err)
		require.Len(t, rules, 3)
		assert.Equal(t, "member_id", rules[0].Name)
		assert.Equal(t, StrategyRemove, rules[0].Strategy)
		assert.Equal(t, "member", rules[0].FieldGate)
		assert.Equal(t, []string{"low", "also_low"}, []string{rules[1].Name, rules[2].Name})
	})

	t.Run("empty input", func(t *testing.T) {
		rules, err := LoadPatterns(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, rules)
	})

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown strategy", "patterns:\n  - name: x\n    pattern: 'x'\n    strategy: shred\n", `unknown strategy "shred"`},
		{"bad regex", "patterns:\n  - name: x\n    pattern: '(['\n", `compile pii pattern "x"`},
		{"missing name", "patterns:\n  - pattern: 'x'\n", "without name"},
		{"unknown key", "patterns:\n  - name: x\n    pattern: 'x'\n    weight: 3\n", "decode pii patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPatterns(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCustomRulesRunAfterBuiltins(t *testing.T) {
	custom, err := LoadPatterns(strings.NewReader(`
patterns:
  - name: member_id
    pattern: 'MBR-\d{6}'
    field: member
`))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Custom = custom
	d := NewDetector(cfg)

	rules := d.Rules()
	assert.Equal(t, "member_id", rules[len(rules)-1].Name)
	assert.Equal(t, StrategyHash, rules[len(rules)-1].Strategy, "unnamed strategy falls back to the default")

	assert.Equal(t, "id "+hash("MBR-123456"), d.AnonymizeString("id MBR-123456", "member_ref"))
	assert.Equal(t, "id MBR-123456", d.AnonymizeString("id MBR-123456", "note"), "gated to member fields")
}

func TestLoadPatternsFile_EmptyPath(t *testing.T) {
	rules, err := LoadPatternsFile("")
	require.NoError(t, err)
	assert.Nil(t, rules)
}
