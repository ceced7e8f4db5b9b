package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/metagen/errors"
)

func TestParseNames(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		names []string
	}{
		{name: "no placeholders", src: "plain text", names: []string{}},
		{name: "simple", src: "$type $name;", names: []string{"type", "name"}},
		{name: "braced", src: "${type}Ptr", names: []string{"type"}},
		{name: "repeated once", src: "$a $b $a", names: []string{"a", "b"}},
		{name: "escaped dollar", src: "$$notaname $x", names: []string{"x"}},
		{name: "lone dollar", src: "cost: $ 5 and $", names: []string{}},
		{name: "digits after dollar", src: "$1 $x1", names: []string{"x1"}},
		{name: "scope operator", src: "$type::$value", names: []string{"type", "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.names, tpl.Names())
			assert.Equal(t, tt.src, tpl.Source())
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("${unterminated")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))

	_, err = Parse("${not valid}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))

	assert.Panics(t, func() { MustParse("${") })
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings Bindings
		want     string
	}{
		{
			name:     "construct template",
			src:      "$type $name;",
			bindings: Bindings{"type": "RealVector", "name": "v"},
			want:     "RealVector v;",
		},
		{
			name:     "enum template",
			src:      "$type::$value",
			bindings: Bindings{"type": "EnumType", "value": "VALUE"},
			want:     "EnumType::VALUE",
		},
		{
			name:     "braced adjacent text",
			src:      "${type}Ptr",
			bindings: Bindings{"type": "Features"},
			want:     "FeaturesPtr",
		},
		{
			name:     "escaped dollar",
			src:      "$$x = $x",
			bindings: Bindings{"x": "1"},
			want:     "$x = 1",
		},
		{
			name:     "extra bindings ignored",
			src:      "$a",
			bindings: Bindings{"a": "A", "b": "B"},
			want:     "A",
		},
		{
			name:     "empty binding",
			src:      "f($arguments)",
			bindings: Bindings{"arguments": ""},
			want:     "f()",
		},
		{
			name:     "value containing dollar is not re-expanded",
			src:      "$literal",
			bindings: Bindings{"literal": "$name"},
			want:     "$name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.src, Strict, tt.bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderMissingPlaceholder(t *testing.T) {
	tpl := MustParse("$object.$method($arguments)")

	t.Run("strict fails", func(t *testing.T) {
		_, err := tpl.Render(Strict, Bindings{"object": "knn", "method": "train"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingPlaceholder))
		assert.Contains(t, err.Error(), "$arguments")
	})

	t.Run("permissive passes through", func(t *testing.T) {
		got, err := tpl.Render(Permissive, Bindings{"object": "knn"})
		require.NoError(t, err)
		assert.Equal(t, "knn.$method($arguments)", got)
	})

	t.Run("permissive keeps braced form", func(t *testing.T) {
		got, err := Render("${a}-${b}", Permissive, Bindings{"a": "x"})
		require.NoError(t, err)
		assert.Equal(t, "x-${b}", got)
	})
}

func TestHas(t *testing.T) {
	tpl := MustParse("#include <shogun/$include> // $element")
	assert.True(t, tpl.Has("include"))
	assert.True(t, tpl.Has("element"))
	assert.False(t, tpl.Has("type"))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "strict", Strict.String())
	assert.Equal(t, "permissive", Permissive.String())
}
