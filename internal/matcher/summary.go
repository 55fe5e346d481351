package matcher

import (
	"fmt"
	"strings"

	"github.com/dshills/citeindex/pkg/types"
)

// Summary renders the text embedded for the vector tier, e.g.
// "function computeTotal(a, b) in billing/total.js". Classes carry no
// parameter list.
func Summary(el types.Element, relPath string) string {
	if el.Kind == types.ElementClass {
		return fmt.Sprintf("class %s in %s", el.Name, relPath)
	}
	kind := el.Kind
	if kind == "" {
		kind = types.ElementFunction
	}
	return fmt.Sprintf("%s %s(%s) in %s", kind, el.Name, strings.Join(el.Params, ", "), relPath)
}
