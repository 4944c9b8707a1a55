package formula

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// Expression is a compiled formula. It is immutable and safe for concurrent use.
type Expression struct {
	source string
	root   node
	fields []string
}

// Compile parses src into an Expression.
func Compile(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	root.fields(set)
	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &Expression{source: src, root: root, fields: fields}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Source returns the expression text.
func (e *Expression) Source() string { return e.source }

// Fields lists the field names the expression reads, sorted.
func (e *Expression) Fields() []string { return e.fields }

// Eval evaluates the expression against row. Missing fields read as null.
func (e *Expression) Eval(row dataset.Row) (dataset.Value, error) {
	v, err := e.root.eval(row)
	if err != nil {
		var re *rowError
		if errors.As(err, &re) {
			return dataset.Null(), &EvalError{Source: e.source, Msg: re.msg}
		}
		return dataset.Null(), err
	}
	return v, nil
}

// Cache memoises compiled expressions by source text.
type Cache struct {
	mu    sync.RWMutex
	exprs map[string]*Expression
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{exprs: make(map[string]*Expression)}
}

// DefaultCache is shared by the operator library.
var DefaultCache = NewCache()

// Compile returns the cached expression for src, compiling it on first use.
// Failed compilations are not cached.
func (c *Cache) Compile(src string) (*Expression, error) {
	key := strings.TrimSpace(src)
	c.mu.RLock()
	e, ok := c.exprs[key]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := Compile(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if existing, ok := c.exprs[key]; ok {
		e = existing
	} else {
		c.exprs[key] = e
	}
	c.mu.Unlock()
	return e, nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.exprs)
}
