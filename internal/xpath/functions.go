package xpath

import (
	"fmt"
	"strings"
)

type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(ctx *evalContext, args []value) (value, error)
}

var functions map[string]function

func init() {
	functions = map[string]function{
		"instance":        {1, 1, fnInstance},
		"join":            {1, -1, fnJoin},
		"count":           {1, 1, fnCount},
		"not":             {1, 1, func(_ *evalContext, a []value) (value, error) { return !toBool(a[0]), nil }},
		"boolean":         {1, 1, func(_ *evalContext, a []value) (value, error) { return toBool(a[0]), nil }},
		"true":            {0, 0, func(*evalContext, []value) (value, error) { return true, nil }},
		"false":           {0, 0, func(*evalContext, []value) (value, error) { return false, nil }},
		"string":          {0, 1, fnString},
		"number":          {0, 1, fnNumber},
		"concat":          {2, -1, fnConcat},
		"contains":        {2, 2, fnContains},
		"starts-with":     {2, 2, fnStartsWith},
		"string-length":   {0, 1, fnStringLength},
		"normalize-space": {0, 1, fnNormalizeSpace},
		"selected":        {2, 2, fnSelected},
		"coalesce":        {2, 2, fnCoalesce},
		"position":        {0, 0, func(ctx *evalContext, _ []value) (value, error) { return float64(ctx.pos), nil }},
		"last":            {0, 0, func(ctx *evalContext, _ []value) (value, error) { return float64(ctx.size), nil }},
		"name":            {0, 1, fnName},
	}
}

func (e *Evaluator) call(c *callExpr, ctx *evalContext) (value, error) {
	f, ok := functions[c.name]
	if !ok {
		return nil, fmt.Errorf("unknown function %s()", c.name)
	}
	if len(c.args) < f.minArgs || (f.maxArgs >= 0 && len(c.args) > f.maxArgs) {
		return nil, fmt.Errorf("wrong number of arguments to %s(): %d", c.name, len(c.args))
	}
	if c.name == "count" {
		if p, ok := c.args[0].(*pathExpr); ok {
			if n, handled, err := e.countRecords(p, ctx); handled || err != nil {
				return n, err
			}
		}
	}

	args := make([]value, len(c.args))
	for i, a := range c.args {
		v, err := e.eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return f.fn(ctx, args)
}

// countRecords answers count() over a path ending in an unpredicated child
// step. Storage roots report NumRecords without reading any record.
func (e *Evaluator) countRecords(p *pathExpr, ctx *evalContext) (value, bool, error) {
	if len(p.steps) == 0 {
		return nil, false, nil
	}
	last := p.steps[len(p.steps)-1]
	if last.axis != axisChild || len(last.preds) > 0 {
		return nil, false, nil
	}

	prefix := *p
	prefix.steps = p.steps[:len(p.steps)-1]
	v, err := e.evalPath(&prefix, ctx)
	if err != nil {
		return nil, true, err
	}
	parents, ok := v.(nodeSet)
	if !ok {
		return nil, true, fmt.Errorf("path step applied to a %s", typeName(v))
	}

	n := 0
	for _, it := range parents {
		if root, ok := it.(*storageItem); ok && matches(root.inst.childName, last.name) {
			n += root.inst.storage.NumRecords()
			continue
		}
		selected, err := e.applyStep(it, last, ctx)
		if err != nil {
			return nil, true, err
		}
		n += len(selected)
	}
	return float64(n), true, nil
}

// contextString is the argument or, when omitted, the context node's string-value
func contextString(ctx *evalContext, args []value) string {
	if len(args) > 0 {
		return toString(args[0])
	}
	if ctx.node == nil {
		return ""
	}
	return stringValue(ctx.node)
}

func fnInstance(ctx *evalContext, args []value) (value, error) {
	name := toString(args[0])
	if ctx.ev.resolver == nil {
		return nil, fmt.Errorf("instance %q is not bound", name)
	}
	inst, err := ctx.ev.resolver.Instance(name)
	if err != nil {
		return nil, err
	}
	return nodeSet{&docItem{inst: inst}}, nil
}

// fnJoin joins the string-values of every argument after the separator,
// flattening node-sets
func fnJoin(_ *evalContext, args []value) (value, error) {
	sep := toString(args[0])
	var parts []string
	for _, a := range args[1:] {
		if ns, ok := a.(nodeSet); ok {
			for _, it := range ns {
				parts = append(parts, stringValue(it))
			}
			continue
		}
		parts = append(parts, toString(a))
	}
	return strings.Join(parts, sep), nil
}

func fnCount(_ *evalContext, args []value) (value, error) {
	ns, ok := args[0].(nodeSet)
	if !ok {
		return nil, fmt.Errorf("count() expects a node-set, got a %s", typeName(args[0]))
	}
	return float64(len(ns)), nil
}

func fnString(ctx *evalContext, args []value) (value, error) {
	return contextString(ctx, args), nil
}

func fnNumber(ctx *evalContext, args []value) (value, error) {
	if len(args) > 0 {
		return toNumber(args[0]), nil
	}
	return toNumber(contextString(ctx, nil)), nil
}

// fnName is the name of the first node of the argument, or of the context node
func fnName(ctx *evalContext, args []value) (value, error) {
	if len(args) == 0 {
		if ctx.node == nil {
			return "", nil
		}
		return itemName(ctx.node), nil
	}
	ns, ok := args[0].(nodeSet)
	if !ok {
		return nil, fmt.Errorf("name() expects a node-set, got a %s", typeName(args[0]))
	}
	if len(ns) == 0 {
		return "", nil
	}
	return itemName(ns[0]), nil
}

func fnConcat(_ *evalContext, args []value) (value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(toString(a))
	}
	return b.String(), nil
}

func fnContains(_ *evalContext, args []value) (value, error) {
	return strings.Contains(toString(args[0]), toString(args[1])), nil
}

func fnStartsWith(_ *evalContext, args []value) (value, error) {
	return strings.HasPrefix(toString(args[0]), toString(args[1])), nil
}

func fnStringLength(ctx *evalContext, args []value) (value, error) {
	return float64(len([]rune(contextString(ctx, args)))), nil
}

func fnNormalizeSpace(ctx *evalContext, args []value) (value, error) {
	return strings.Join(strings.Fields(contextString(ctx, args)), " "), nil
}

// fnSelected reports whether a space-separated list contains an item
func fnSelected(_ *evalContext, args []value) (value, error) {
	item := strings.TrimSpace(toString(args[1]))
	for _, v := range strings.Fields(toString(args[0])) {
		if v == item {
			return true, nil
		}
	}
	return false, nil
}

func fnCoalesce(_ *evalContext, args []value) (value, error) {
	if s := toString(args[0]); s != "" {
		return s, nil
	}
	return toString(args[1]), nil
}
