package gate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Filter constrains an operation to rows matching every entry. A nil value
// matches SQL NULL; wrap values with Gte/Gt/Lte for comparisons; everything
// else compares with equality.
type Filter map[string]any

// Values carries the columns written by an insert or update. A value produced
// by Raw is spliced in as a SQL expression, which is how conditional
// arithmetic updates (inventory decrements) are expressed.
type Values map[string]any

// Expr is a raw SQL fragment with ? placeholders for its arguments.
type Expr struct {
	Fragment string
	Args     []any
}

// Raw builds an expression value for Values or comparisons that cannot be
// expressed as a plain column assignment.
func Raw(fragment string, args ...any) Expr {
	return Expr{Fragment: fragment, Args: args}
}

type cond struct {
	op    string
	value any
}

// Gte matches rows where the column is greater than or equal to v.
func Gte(v any) any { return cond{op: ">=", value: v} }

// Gt matches rows where the column is strictly greater than v.
func Gt(v any) any { return cond{op: ">", value: v} }

// Lte matches rows where the column is less than or equal to v.
func Lte(v any) any { return cond{op: "<=", value: v} }

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("gate: invalid identifier %q", name)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// builder accumulates a statement with positional placeholders.
type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) write(s string) {
	b.sql.WriteString(s)
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// bindExpr rewrites ? placeholders inside the fragment to positional ones.
func (b *builder) bindExpr(e Expr) (string, error) {
	fragment := e.Fragment
	var out strings.Builder
	argIdx := 0
	for i := 0; i < len(fragment); i++ {
		if fragment[i] != '?' {
			out.WriteByte(fragment[i])
			continue
		}
		if argIdx >= len(e.Args) {
			return "", fmt.Errorf("gate: expression %q has more placeholders than arguments", e.Fragment)
		}
		out.WriteString(b.bind(e.Args[argIdx]))
		argIdx++
	}
	if argIdx != len(e.Args) {
		return "", fmt.Errorf("gate: expression %q has unused arguments", e.Fragment)
	}
	return out.String(), nil
}

func (b *builder) writeWhere(f Filter) error {
	if len(f) == 0 {
		return nil
	}
	b.write(" WHERE ")
	for i, key := range sortedKeys(f) {
		if err := validIdent(key); err != nil {
			return err
		}
		if i > 0 {
			b.write(" AND ")
		}
		switch v := f[key].(type) {
		case nil:
			b.write(key + " IS NULL")
		case cond:
			b.write(key + " " + v.op + " " + b.bind(v.value))
		default:
			b.write(key + " = " + b.bind(v))
		}
	}
	return nil
}
