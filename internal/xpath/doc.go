// Package xpath evaluates the XPath subset used by case filter expressions.
//
// Supported syntax:
//
//   - location paths: instance('name')/a/b, relative steps, @attr, *, .
//   - predicates: [expr]; a numeric predicate selects by position
//   - operators: or, and, =, !=, <, <=, >, >=, unary -
//   - literals: 'single' or "double" quoted strings, decimal numbers
//   - functions: see functions.go
//
// Descendant (//) and parent (..) axes, arithmetic and variables are not
// supported and produce a SyntaxError.
//
// Data comes from instances, resolved by name through a Resolver. An
// instance is either a static Node tree or a Storage: a randomly addressable
// record store whose records become the children of the instance root. When
// the first predicate of a step over a Storage compares an indexed attribute
// with a string literal, the evaluator asks the storage for the matching
// ordinals instead of reading every record.
package xpath
