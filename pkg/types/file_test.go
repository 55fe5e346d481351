package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRecord_Elements(t *testing.T) {
	f := &FileRecord{
		Functions: []FunctionRecord{
			{Name: "computeTotal", Line: 3, EndLine: 5, Params: []string{"a", "b"}, Kind: FuncKindFunction},
			{Name: "handler", Line: 7, EndLine: 9, Kind: FuncKindArrow},
		},
		Classes: []ClassRecord{
			{Name: "Invoice", Line: 11, EndLine: 20, Methods: []FunctionRecord{
				{Name: "total", Line: 12, EndLine: 14, Kind: FuncKindMethod},
			}},
		},
		Variables:  []VariableRecord{{Name: "config", Line: 1}},
		Interfaces: []InterfaceRecord{{Name: "Options", Line: 2, EndLine: 2}},
	}

	elements := f.Elements()
	require.Len(t, elements, 4)
	assert.Equal(t, "computeTotal", elements[0].Name)
	assert.Equal(t, ElementFunction, elements[0].Kind)
	assert.Equal(t, ElementArrow, elements[1].Kind)
	assert.Equal(t, ElementClass, elements[2].Kind)
	assert.Equal(t, "total", elements[3].Name)
	assert.Equal(t, ElementMethod, elements[3].Kind)

	// Methods are not counted separately
	assert.Equal(t, 3, f.ElementCount())
}

func TestFileRecord_NormalizeSerializesEmptyArrays(t *testing.T) {
	f := &FileRecord{Language: LangGo, Functions: []FunctionRecord{{Name: "f", Line: 1, EndLine: 1, Kind: FuncKindFunction}}}
	f.Normalize()

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["classes"])
	assert.Equal(t, []any{}, raw["imports"])

	fns := raw["functions"].([]any)
	fn := fns[0].(map[string]any)
	assert.Equal(t, []any{}, fn["params"])
	assert.Equal(t, float64(1), fn["endLine"])
}

func TestFileRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  FileRecord
		wantErr error
	}{
		{
			name:    "missing language",
			record:  FileRecord{},
			wantErr: ErrMissingLanguage,
		},
		{
			name: "bad kind",
			record: FileRecord{Language: LangGo, Functions: []FunctionRecord{
				{Name: "f", Line: 1, EndLine: 1, Kind: "lambda"},
			}},
			wantErr: ErrInvalidKind,
		},
		{
			name: "reversed lines",
			record: FileRecord{Language: LangGo, Functions: []FunctionRecord{
				{Name: "f", Line: 5, EndLine: 1, Kind: FuncKindFunction},
			}},
			wantErr: ErrInvalidLines,
		},
		{
			name: "valid",
			record: FileRecord{Language: LangGo, Classes: []ClassRecord{
				{Name: "C", Line: 1, EndLine: 3, Methods: []FunctionRecord{{Name: "m", Line: 2, EndLine: 2, Kind: FuncKindMethod}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCitation_Validate(t *testing.T) {
	c := Citation{KnowledgeID: "k1", ElementName: "f", StartLine: 1, EndLine: 2, MatchType: MatchTag}
	assert.NoError(t, c.Validate())

	c.MatchType = "fuzzy"
	assert.ErrorIs(t, c.Validate(), ErrInvalidMatch)
}
