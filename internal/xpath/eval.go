package xpath

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// value is one of string, float64, bool or nodeSet
type value interface{}

type nodeSet []item

// ErrNoMainInstance is returned for absolute paths; filter queries have no main instance
var ErrNoMainInstance = errors.New("absolute paths require a main instance")

// Evaluator evaluates expressions against instances supplied by a Resolver
type Evaluator struct {
	resolver Resolver
}

// New creates an evaluator
func New(r Resolver) *Evaluator {
	return &Evaluator{resolver: r}
}

type evalContext struct {
	ev   *Evaluator
	node item
	pos  int
	size int
}

// EvaluateString evaluates an expression and converts the result with string()
func (e *Evaluator) EvaluateString(query string) (string, error) {
	v, err := e.evaluate(query)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// EvaluateBool evaluates an expression and converts the result with boolean()
func (e *Evaluator) EvaluateBool(query string) (bool, error) {
	v, err := e.evaluate(query)
	if err != nil {
		return false, err
	}
	return toBool(v), nil
}

// Select evaluates an expression that must yield a node-set and returns the
// string-values of its nodes in document order
func (e *Evaluator) Select(query string) ([]string, error) {
	v, err := e.evaluate(query)
	if err != nil {
		return nil, err
	}
	ns, ok := v.(nodeSet)
	if !ok {
		return nil, fmt.Errorf("expression %q does not select nodes", query)
	}
	out := make([]string, len(ns))
	for i, it := range ns {
		out[i] = stringValue(it)
	}
	return out, nil
}

func (e *Evaluator) evaluate(query string) (value, error) {
	tree, err := parse(query)
	if err != nil {
		return nil, err
	}
	return e.eval(tree, &evalContext{ev: e, pos: 1, size: 1})
}

func (e *Evaluator) eval(x expr, ctx *evalContext) (value, error) {
	switch n := x.(type) {
	case *literalExpr:
		return n.value, nil
	case *numberExpr:
		return n.value, nil
	case *negExpr:
		v, err := e.eval(n.operand, ctx)
		if err != nil {
			return nil, err
		}
		return -toNumber(v), nil
	case *binaryExpr:
		return e.evalBinary(n, ctx)
	case *callExpr:
		return e.call(n, ctx)
	case *pathExpr:
		return e.evalPath(n, ctx)
	default:
		return nil, fmt.Errorf("unknown expression %T", x)
	}
}

func (e *Evaluator) evalBinary(n *binaryExpr, ctx *evalContext) (value, error) {
	left, err := e.eval(n.left, ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "or":
		if toBool(left) {
			return true, nil
		}
		right, err := e.eval(n.right, ctx)
		if err != nil {
			return nil, err
		}
		return toBool(right), nil
	case "and":
		if !toBool(left) {
			return false, nil
		}
		right, err := e.eval(n.right, ctx)
		if err != nil {
			return nil, err
		}
		return toBool(right), nil
	}

	right, err := e.eval(n.right, ctx)
	if err != nil {
		return nil, err
	}
	return compare(n.op, left, right), nil
}

func (e *Evaluator) evalPath(n *pathExpr, ctx *evalContext) (value, error) {
	var current nodeSet
	switch {
	case n.filter != nil:
		v, err := e.eval(n.filter, ctx)
		if err != nil {
			return nil, err
		}
		ns, ok := v.(nodeSet)
		if !ok {
			if len(n.preds) == 0 && len(n.steps) == 0 {
				return v, nil
			}
			return nil, fmt.Errorf("path step applied to a %s", typeName(v))
		}
		current, err = e.filter(ns, n.preds, ctx)
		if err != nil {
			return nil, err
		}
	case n.absolute:
		return nil, ErrNoMainInstance
	default:
		if ctx.node == nil {
			return nil, fmt.Errorf("relative path evaluated without a context node")
		}
		current = nodeSet{ctx.node}
	}

	for _, s := range n.steps {
		var next nodeSet
		for _, it := range current {
			selected, err := e.applyStep(it, s, ctx)
			if err != nil {
				return nil, err
			}
			next = append(next, selected...)
		}
		current = next
	}
	return current, nil
}

func matches(name, test string) bool {
	return test == "*" || name == test
}

func (e *Evaluator) applyStep(it item, s step, ctx *evalContext) (nodeSet, error) {
	var candidates nodeSet
	preds := s.preds

	switch s.axis {
	case axisSelf:
		candidates = nodeSet{it}

	case axisAttribute:
		n, ok := it.(Node)
		if !ok {
			return nil, nil
		}
		if s.name == "*" {
			for _, name := range n.AttrNames() {
				v, _ := n.Attr(name)
				candidates = append(candidates, attrItem{name: name, value: v})
			}
		} else if v, ok := n.Attr(s.name); ok {
			candidates = nodeSet{attrItem{name: s.name, value: v}}
		}

	case axisChild:
		switch n := it.(type) {
		case *docItem:
			if n.inst.storage != nil {
				if matches(n.inst.rootName, s.name) {
					candidates = nodeSet{&storageItem{inst: n.inst}}
				}
			} else if n.inst.root != nil && matches(n.inst.root.Name(), s.name) {
				candidates = nodeSet{n.inst.root}
			}
		case *storageItem:
			if !matches(n.inst.childName, s.name) {
				return nil, nil
			}
			records, rest, err := e.storageChildren(n.inst, preds)
			if err != nil {
				return nil, err
			}
			candidates, preds = records, rest
		case Node:
			for _, child := range n.Children() {
				if matches(child.Name(), s.name) {
					candidates = append(candidates, child)
				}
			}
		}
	}

	return e.filter(candidates, preds, ctx)
}

// storageChildren reads the records under a storage root. When the first
// predicate is an indexed equality it is answered by the storage and removed
// from the returned predicate list.
func (e *Evaluator) storageChildren(inst Instance, preds []expr) (nodeSet, []expr, error) {
	if len(preds) > 0 {
		if field, val, ok := indexedEquality(preds[0], inst.indexed); ok {
			ids, err := inst.storage.IDsForValue(field, val)
			if err != nil {
				return nil, nil, err
			}
			records, err := readAll(inst.storage, ids)
			if err != nil {
				return nil, nil, err
			}
			return records, preds[1:], nil
		}
	}

	ids := make([]int, 0, inst.storage.NumRecords())
	for it := inst.storage.Iterate(); it.HasMore(); {
		ids = append(ids, it.NextID())
	}
	records, err := readAll(inst.storage, ids)
	if err != nil {
		return nil, nil, err
	}
	return records, preds, nil
}

func readAll(s Storage, ids []int) (nodeSet, error) {
	out := make(nodeSet, 0, len(ids))
	for _, id := range ids {
		n, err := s.Read(id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// indexedEquality recognises @attr = 'literal' and 'literal' = @attr
func indexedEquality(x expr, indexed map[string]string) (string, string, bool) {
	b, ok := x.(*binaryExpr)
	if !ok || b.op != "=" {
		return "", "", false
	}
	attrName := func(side expr) (string, bool) {
		p, ok := side.(*pathExpr)
		if !ok || p.filter != nil || p.absolute || len(p.steps) != 1 {
			return "", false
		}
		s := p.steps[0]
		if s.axis != axisAttribute || s.name == "*" || len(s.preds) > 0 {
			return "", false
		}
		return s.name, true
	}

	if name, ok := attrName(b.left); ok {
		if lit, ok := b.right.(*literalExpr); ok {
			if field, ok := indexed[name]; ok {
				return field, lit.value, true
			}
		}
	}
	if name, ok := attrName(b.right); ok {
		if lit, ok := b.left.(*literalExpr); ok {
			if field, ok := indexed[name]; ok {
				return field, lit.value, true
			}
		}
	}
	return "", "", false
}

func (e *Evaluator) filter(ns nodeSet, preds []expr, ctx *evalContext) (nodeSet, error) {
	for _, pred := range preds {
		kept := make(nodeSet, 0, len(ns))
		for i, it := range ns {
			v, err := e.eval(pred, &evalContext{ev: e, node: it, pos: i + 1, size: len(ns)})
			if err != nil {
				return nil, err
			}
			if f, ok := v.(float64); ok {
				if f == float64(i+1) {
					kept = append(kept, it)
				}
				continue
			}
			if toBool(v) {
				kept = append(kept, it)
			}
		}
		ns = kept
	}
	return ns, nil
}

// compare applies an XPath 1.0 comparison
func compare(op string, left, right value) bool {
	lns, lIsSet := left.(nodeSet)
	rns, rIsSet := right.(nodeSet)

	switch {
	case lIsSet && rIsSet:
		for _, l := range lns {
			for _, r := range rns {
				if compareAtoms(op, stringValue(l), stringValue(r)) {
					return true
				}
			}
		}
		return false
	case lIsSet:
		if b, ok := right.(bool); ok {
			return compareAtoms(op, toBool(left), b)
		}
		for _, l := range lns {
			if compareAtoms(op, atomLike(stringValue(l), right), right) {
				return true
			}
		}
		return false
	case rIsSet:
		if b, ok := left.(bool); ok {
			return compareAtoms(op, b, toBool(right))
		}
		for _, r := range rns {
			if compareAtoms(op, left, atomLike(stringValue(r), left)) {
				return true
			}
		}
		return false
	default:
		return compareAtoms(op, left, right)
	}
}

// atomLike converts a node's string-value to the type of the other operand
func atomLike(s string, other value) value {
	if _, ok := other.(float64); ok {
		return toNumber(s)
	}
	return s
}

func compareAtoms(op string, left, right value) bool {
	if op == "=" || op == "!=" {
		var eq bool
		_, lb := left.(bool)
		_, rb := right.(bool)
		_, lf := left.(float64)
		_, rf := right.(float64)
		switch {
		case lb || rb:
			eq = toBool(left) == toBool(right)
		case lf || rf:
			eq = toNumber(left) == toNumber(right)
		default:
			eq = toString(left) == toString(right)
		}
		if op == "=" {
			return eq
		}
		return !eq
	}

	l, r := toNumber(left), toNumber(right)
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

func typeName(v value) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "node-set"
	}
}

func toString(v value) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(x)
	case nodeSet:
		if len(x) == 0 {
			return ""
		}
		return stringValue(x[0])
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

func toNumber(v value) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case nodeSet:
		return toNumber(toString(x))
	}
	return math.NaN()
}

func toBool(v value) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case nodeSet:
		return len(x) > 0
	}
	return false
}
