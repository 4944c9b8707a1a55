package formula

import (
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRow = dataset.Row{
	"price":      dataset.Number(10),
	"qty":        dataset.String("3"),
	"name":       dataset.String("  Widget "),
	"region":     dataset.String("north"),
	"active":     dataset.Bool(true),
	"zero":       dataset.Number(0),
	"unit price": dataset.Number(2.5),
	"order.date": dataset.Date(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)),
	"shipped":    dataset.String("2023-11-02"),
	"none":       dataset.Null(),
}

func eval(t *testing.T, src string) dataset.Value {
	t.Helper()
	e, err := Compile(src)
	require.NoError(t, err, src)
	v, err := e.Eval(testRow)
	require.NoError(t, err, src)
	return v
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want dataset.Value
	}{
		{"1 + 2 * 3", dataset.Number(7)},
		{"(1 + 2) * 3", dataset.Number(9)},
		{"price * qty", dataset.Number(30)},
		{"price / 4", dataset.Number(2.5)},
		{"price % 3", dataset.Number(1)},
		{"-price + 1", dataset.Number(-9)},
		{"[unit price] * 2", dataset.Number(5)},
		{"${unit price} * 2", dataset.Number(5)},
		{"1.5e1", dataset.Number(15)},
		{"price - none", dataset.Null()},
		{"none * 2", dataset.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src))
		})
	}
}

func TestEval_Plus(t *testing.T) {
	assert.Equal(t, dataset.Number(13), eval(t, "price + qty"))
	assert.Equal(t, dataset.String("north-1"), eval(t, "region + '-' + 1"))
	assert.Equal(t, dataset.String("north"), eval(t, "region + none"))
	assert.True(t, eval(t, "none + missing").IsNull())
}

func TestEval_Comparison(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"price > 5", true},
		{"price >= 10", true},
		{"price < qty", false},
		{"qty == 3", true},
		{"qty = '3'", true},
		{"region != 'south'", true},
		{"region <> 'north'", false},
		{"none == null", true},
		{"none != 0", true},
		{"none < 1", false},
		{"none > 1", false},
		{"missing == null", true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, dataset.Bool(tt.want), eval(t, tt.src))
		})
	}
}

func TestEval_Logical(t *testing.T) {
	assert.Equal(t, dataset.Bool(true), eval(t, "price > 5 && region == 'north'"))
	assert.Equal(t, dataset.Bool(true), eval(t, "price > 50 or active"))
	assert.Equal(t, dataset.Bool(false), eval(t, "not active"))
	assert.Equal(t, dataset.Bool(true), eval(t, "!zero"))
	assert.Equal(t, dataset.Bool(false), eval(t, "zero and 1 / zero"))
	assert.Equal(t, dataset.Bool(true), eval(t, "active || 1 / zero"))
}

func TestEval_Functions(t *testing.T) {
	tests := []struct {
		src  string
		want dataset.Value
	}{
		{"if(price > 5, 'high', 'low')", dataset.String("high")},
		{"IF(zero, 1 / zero, 0)", dataset.Number(0)},
		{"ifnull(none, 'x')", dataset.String("x")},
		{"nvl(region, 'x')", dataset.String("north")},
		{"upper(region)", dataset.String("NORTH")},
		{"lower('ABC')", dataset.String("abc")},
		{"trim(name)", dataset.String("Widget")},
		{"len(region)", dataset.Number(5)},
		{"len(none)", dataset.Number(0)},
		{"substr(region, 1, 3)", dataset.String("ort")},
		{"substr(region, 2)", dataset.String("rth")},
		{"substr(region, 3, 99)", dataset.String("th")},
		{"concat(region, '-', price)", dataset.String("north-10")},
		{"concat()", dataset.String("")},
		{"abs(-4)", dataset.Number(4)},
		{"round(2.346, 2)", dataset.Number(2.35)},
		{"round(2.5)", dataset.Number(3)},
		{"year([order.date])", dataset.Number(2024)},
		{"month(order.date)", dataset.Number(5)},
		{"day(shipped)", dataset.Number(2)},
		{"upper(none)", dataset.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src))
		})
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"1 +",
		"(1 + 2",
		"'open",
		"[field",
		"unknownfn(1)",
		"if(1, 2)",
		"upper(1, 2)",
		"1 2",
		"price #",
		"concat(1,",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestEval_RuntimeErrors(t *testing.T) {
	for _, src := range []string{
		"price / zero",
		"price % zero",
		"region * 2",
		"-region",
		"abs(region)",
		"year(region)",
	} {
		t.Run(src, func(t *testing.T) {
			e, err := Compile(src)
			require.NoError(t, err)
			v, err := e.Eval(testRow)
			require.Error(t, err)
			var ee *EvalError
			assert.ErrorAs(t, err, &ee)
			assert.True(t, v.IsNull())
		})
	}
}

func TestExpression_Fields(t *testing.T) {
	e := MustCompile("if(a > [b c], upper(d), a + 1)")
	assert.Equal(t, []string{"a", "b c", "d"}, e.Fields())
	assert.Equal(t, "if(a > [b c], upper(d), a + 1)", e.Source())
	assert.Empty(t, MustCompile("1 + 2").Fields())
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("(") })
}

func TestCache(t *testing.T) {
	c := NewCache()
	first, err := c.Compile("a + 1")
	require.NoError(t, err)
	second, err := c.Compile("  a + 1 ")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	_, err = c.Compile("a +")
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Compile("price * qty")
			assert.NoError(t, err)
			v, err := e.Eval(testRow)
			assert.NoError(t, err)
			assert.Equal(t, dataset.Number(30), v)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestFunctions(t *testing.T) {
	assert.Contains(t, Functions(), "ifnull")
	assert.Contains(t, Functions(), "substr")
}
