package formula

import (
	"math"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// node is a compiled expression tree element.
type node interface {
	eval(row dataset.Row) (dataset.Value, error)
	fields(set map[string]struct{})
}

type literalNode struct{ v dataset.Value }

func (n literalNode) eval(dataset.Row) (dataset.Value, error) { return n.v, nil }
func (n literalNode) fields(map[string]struct{})               {}

type fieldNode struct{ name string }

func (n fieldNode) eval(row dataset.Row) (dataset.Value, error) { return row.Get(n.name), nil }
func (n fieldNode) fields(set map[string]struct{})              { set[n.name] = struct{}{} }

type unaryNode struct {
	op      string
	operand node
}

func (n unaryNode) eval(row dataset.Row) (dataset.Value, error) {
	v, err := n.operand.eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	switch n.op {
	case "!":
		return dataset.Bool(!v.Truthy()), nil
	default:
		if v.IsNull() {
			return dataset.Null(), nil
		}
		f, ok := v.AsNumber()
		if !ok {
			return dataset.Null(), errf("cannot negate non-numeric value %q", v.AsString())
		}
		return dataset.Number(-f), nil
	}
}

func (n unaryNode) fields(set map[string]struct{}) { n.operand.fields(set) }

type logicalNode struct {
	op          string
	left, right node
}

func (n logicalNode) eval(row dataset.Row) (dataset.Value, error) {
	l, err := n.left.eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	if n.op == "&&" && !l.Truthy() {
		return dataset.Bool(false), nil
	}
	if n.op == "||" && l.Truthy() {
		return dataset.Bool(true), nil
	}
	r, err := n.right.eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	return dataset.Bool(r.Truthy()), nil
}

func (n logicalNode) fields(set map[string]struct{}) {
	n.left.fields(set)
	n.right.fields(set)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(row dataset.Row) (dataset.Value, error) {
	l, err := n.left.eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	r, err := n.right.eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	switch n.op {
	case "+":
		return add(l, r), nil
	case "-", "*", "/", "%":
		return arith(n.op, l, r)
	default:
		return compare(n.op, l, r), nil
	}
}

func (n binaryNode) fields(set map[string]struct{}) {
	n.left.fields(set)
	n.right.fields(set)
}

type callNode struct {
	name string
	fn   builtin
	args []node
}

func (n callNode) eval(row dataset.Row) (dataset.Value, error) {
	if n.fn.lazy != nil {
		return n.fn.lazy(row, n.args)
	}
	vals := make([]dataset.Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(row)
		if err != nil {
			return dataset.Null(), err
		}
		vals[i] = v
	}
	return n.fn.call(vals)
}

func (n callNode) fields(set map[string]struct{}) {
	for _, a := range n.args {
		a.fields(set)
	}
}

func add(l, r dataset.Value) dataset.Value {
	if l.IsNull() && r.IsNull() {
		return dataset.Null()
	}
	lf, lok := l.AsNumber()
	rf, rok := r.AsNumber()
	if lok && rok {
		return dataset.Number(lf + rf)
	}
	return dataset.String(l.AsString() + r.AsString())
}

func arith(op string, l, r dataset.Value) (dataset.Value, error) {
	if l.IsNull() || r.IsNull() {
		return dataset.Null(), nil
	}
	lf, lok := l.AsNumber()
	rf, rok := r.AsNumber()
	if !lok || !rok {
		return dataset.Null(), errf("operator %s needs numeric operands, got %q and %q", op, l.AsString(), r.AsString())
	}
	switch op {
	case "-":
		return dataset.Number(lf - rf), nil
	case "*":
		return dataset.Number(lf * rf), nil
	case "/":
		if rf == 0 {
			return dataset.Null(), errf("division by zero")
		}
		return dataset.Number(lf / rf), nil
	default:
		if rf == 0 {
			return dataset.Null(), errf("modulo by zero")
		}
		return dataset.Number(math.Mod(lf, rf)), nil
	}
}

func compare(op string, l, r dataset.Value) dataset.Value {
	switch op {
	case "==", "=":
		return dataset.Bool(dataset.Equal(l, r))
	case "!=", "<>":
		return dataset.Bool(!dataset.Equal(l, r))
	}
	if l.IsNull() || r.IsNull() {
		return dataset.Bool(false)
	}
	c := dataset.Compare(l, r)
	switch op {
	case "<":
		return dataset.Bool(c < 0)
	case "<=":
		return dataset.Bool(c <= 0)
	case ">":
		return dataset.Bool(c > 0)
	default:
		return dataset.Bool(c >= 0)
	}
}

// rowError is raised inside node evaluation; Expression.Eval attaches the source.
type rowError struct{ msg string }

func (e *rowError) Error() string { return e.msg }
