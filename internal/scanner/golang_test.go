package scanner

import (
	"testing"

	"github.com/dshills/citeindex/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Go(t *testing.T) {
	content := `package billing

import (
	"fmt"
	str "strings"
)

const MaxLines = 100

var defaultName = "ledger"

var Formatter = func(v int) string { return fmt.Sprint(v) }

// Invoice holds billed lines
type Invoice struct {
	Lines []int
}

type Totaler interface {
	Total() int
}

type Amount int

func (i *Invoice) Total() int {
	return len(i.Lines)
}

func NewInvoice(lines []int, name string) *Invoice {
	_ = str.ToUpper(name)
	return &Invoice{Lines: lines}
}

func (f foreign) Describe() string { return "" }
`
	record := scanSource(t, "invoice.go", content)

	assert.Equal(t, types.LangGo, record.Language)
	assert.Equal(t, []string{"fmt", "strings"}, record.Imports)

	newInvoice := functionNamed(t, record.Functions, "NewInvoice")
	assert.True(t, newInvoice.IsExported)
	assert.Equal(t, []string{"lines", "name"}, newInvoice.Params)
	assert.Equal(t, types.FuncKindFunction, newInvoice.Kind)

	formatter := functionNamed(t, record.Functions, "Formatter")
	assert.Equal(t, types.FuncKindArrow, formatter.Kind)
	assert.Equal(t, []string{"v"}, formatter.Params)

	// Receiver type declared in another file
	describe := functionNamed(t, record.Functions, "Describe")
	assert.Equal(t, types.FuncKindMethod, describe.Kind)

	require.Len(t, record.Classes, 1)
	invoice := record.Classes[0]
	assert.Equal(t, "Invoice", invoice.Name)
	require.Len(t, invoice.Methods, 1)
	assert.Equal(t, "Total", invoice.Methods[0].Name)
	assert.Equal(t, 25, invoice.Methods[0].Line)
	assert.Equal(t, 27, invoice.Methods[0].EndLine)

	require.Len(t, record.Variables, 2)
	assert.Equal(t, "MaxLines", record.Variables[0].Name)
	assert.Equal(t, "const", record.Variables[0].Kind)
	assert.True(t, record.Variables[0].IsExported)
	assert.False(t, record.Variables[1].IsExported)

	require.Len(t, record.Interfaces, 2)
	assert.Equal(t, []string{"Total"}, record.Interfaces[0].Properties)
	assert.Equal(t, types.InterfaceKindType, record.Interfaces[1].Kind)
}

func TestScan_GoSyntaxErrorIsTolerated(t *testing.T) {
	content := `package broken

func Good() {}

func Bad( {
`
	record := scanSource(t, "broken.go", content)
	functionNamed(t, record.Functions, "Good")
}

func TestReceiverType(t *testing.T) {
	record := scanSource(t, "generic.go", `package g

type List[T any] struct{}

func (l *List[T]) Len() int { return 0 }
`)
	require.Len(t, record.Classes, 1)
	require.Len(t, record.Classes[0].Methods, 1)
	assert.Equal(t, "Len", record.Classes[0].Methods[0].Name)
}
