package translator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/metagen/ast"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/tags"
	"github.com/teranos/metagen/target"
	"github.com/teranos/metagen/tmpl"
)

func strPtr(s string) *string { return &s }

// testTarget renders every construct in a recognisable C-like shape.
func testTarget() *target.Definition {
	return &target.Definition{
		Name:      "test",
		Program:   "$dependencies|$program|$testing",
		Statement: "$statement;\n",
		Assign:    "$name = $expr",
		Print:     "print($expr)",
		Comment:   "#$comment\n",
		Init: target.InitTemplates{
			Copy:      "$type $name = $expr",
			Construct: "$type $name($arguments)",
		},
		Expr: target.ExprTemplates{
			MethodCall:    "$object.$method($arguments)",
			StringLiteral: `"$literal"`,
			NumberLiteral: "$number",
			Identifier:    "$identifier",
			Enum:          "$type::$value",
			BoolLiteral:   map[string]string{"True": "true", "False": "false"},
		},
		Type: map[string]string{
			"Default": "$type",
			"int":     "int",
			"Real":    "double",
		},
	}
}

func newTranslator(t *testing.T, def *target.Definition) *Translator {
	t.Helper()
	tr, err := New(def, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	return tr
}

func stmt(s ast.Statement) ast.Line { return ast.StatementLine{Statement: s} }

func construct(typ, name string, args ...ast.Expr) ast.Line {
	return stmt(ast.Init{Type: ast.ObjectType{Name: typ}, Name: name, Initializer: ast.ConstructInit{Args: ast.Args(args...)}})
}

func copyInit(typ ast.Type, name string, expr ast.Expr) ast.Line {
	return stmt(ast.Init{Type: typ, Name: name, Initializer: ast.CopyInit{Expr: expr}})
}

func translate(t *testing.T, tr *Translator, prog ast.Program, p Params) *Result {
	t.Helper()
	res, err := tr.Translate(context.Background(), prog, p)
	require.NoError(t, err)
	return res
}

func TestConstructDeclaration(t *testing.T) {
	def := testTarget()
	def.Program = "$program"
	def.Statement = "$statement"
	def.Init.Construct = "$type $name;"

	res := translate(t, newTranslator(t, def), ast.Program{construct("RealVector", "v")}, Params{})

	assert.Equal(t, "RealVector v;", res.Output)
	assert.Equal(t, []string{"RealVector"}, res.Dependencies.AllClasses)
	assert.Equal(t, []string{"RealVector"}, res.Dependencies.ConstructedClasses)
}

func TestEnumExpression(t *testing.T) {
	def := testTarget()
	def.Program = "$program"
	def.Statement = "$statement"

	prog := ast.Program{stmt(ast.ExprStmt{Expr: ast.EnumRef{EnumType: "EnumType", Value: "VALUE"}})}
	res := translate(t, newTranslator(t, def), prog, Params{})

	assert.Equal(t, "EnumType::VALUE", res.Output)
	assert.Equal(t, []EnumRef{{Type: "EnumType", Value: "VALUE"}}, res.Dependencies.Enums)
}

func TestUnknownStatementProducesNoOutput(t *testing.T) {
	tr := newTranslator(t, testTarget())

	prog := ast.Program{
		ast.CommentLine{Text: "before"},
		construct("KNN", "knn"),
		stmt(nil),
	}
	res, err := tr.Translate(context.Background(), prog, Params{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ast.ErrUnknownStatementKind))
	assert.Contains(t, err.Error(), "line 3")

	_, err = ast.Decode([]byte(`{"Program": [{"Comment": "x"}, {"Statement": {"Loop": []}}]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ast.ErrUnknownStatementKind))
}

func TestUnknownExpressionAndInitializer(t *testing.T) {
	tr := newTranslator(t, testTarget())

	_, err := tr.Translate(context.Background(), ast.Program{stmt(ast.ExprStmt{})}, Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ast.ErrUnknownExpressionKind))

	bad := stmt(ast.Init{Type: ast.BasicType{Name: "int"}, Name: "x"})
	_, err = tr.Translate(context.Background(), ast.Program{bad}, Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ast.ErrUnknownInitializerKind))
}

func TestNilArgumentIsMalformed(t *testing.T) {
	tr := newTranslator(t, testTarget())

	call := ast.MethodCall{
		Object: "knn",
		Method: "train",
		Args:   ast.ArgumentList{nil, ast.Identifier{Name: "x"}},
	}
	res, err := tr.Translate(context.Background(), ast.Program{stmt(ast.ExprStmt{Expr: call})}, Params{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ast.ErrMalformedNode), "got %v", err)
}

func TestStorageEpilogue(t *testing.T) {
	tr := newTranslator(t, testTarget())

	prog := ast.Program{
		construct("RealMatrix", "m"),
		copyInit(ast.ObjectType{Name: "Real"}, StorageFileVar, ast.NumberLiteral{Text: "1"}),
		copyInit(ast.ObjectType{Name: "RealVector"}, StorageVar, ast.Identifier{Name: "m"}),
	}
	res := translate(t, tr, prog, Params{ProgramName: "knn", StoreVars: true})

	wantBody := "RealMatrix m();\n" +
		"double __sg_storage_file = 1;\n" +
		"RealVector __sg_storage = m;\n"
	wantTesting := "WrappedObjectArray __sg_storage();\n" +
		"SerializableAsciiFile __sg_storage_file(\"knn.dat\", 119);\n" +
		"__sg_storage.append_wrapped(m, \"m\");\n" +
		"__sg_storage.save_serializable(__sg_storage_file);\n"

	assert.Equal(t, "|"+wantBody+"|"+wantTesting, res.Output)
	assert.Equal(t, []string{"m"}, res.StoredVars)
	assert.Equal(t, []string{"Real", "RealMatrix", "RealVector", "SerializableAsciiFile", "WrappedObjectArray"}, res.Dependencies.AllClasses)
	assert.Equal(t, []string{"RealMatrix", "SerializableAsciiFile", "WrappedObjectArray"}, res.Dependencies.ConstructedClasses)
}

func TestEpilogueFilter(t *testing.T) {
	tr := newTranslator(t, testTarget())

	prog := ast.Program{
		copyInit(ast.ObjectType{Name: "Real"}, "a", ast.NumberLiteral{Text: "0.5"}),
		copyInit(ast.BasicType{Name: "int"}, "b", ast.NumberLiteral{Text: "2"}),
		construct("RealVector", "c"),
		construct("RealFeatures", "d", ast.Identifier{Name: "c"}),
		copyInit(ast.BasicType{Name: "Real"}, "basic", ast.NumberLiteral{Text: "1"}),
		construct("RealMatrix", "e"),
	}

	res := translate(t, tr, prog, Params{ProgramName: "p", StoreVars: true})
	assert.Equal(t, []string{"a", "c", "e"}, res.StoredVars)
	appends := strings.Count(res.Output, ".append_wrapped(")
	assert.Equal(t, 3, appends)

	off := translate(t, tr, prog, Params{ProgramName: "p"})
	assert.Nil(t, off.StoredVars)
	assert.NotContains(t, off.Output, StorageVar)
	assert.True(t, strings.HasSuffix(off.Output, "|"))
}

func TestDependencyBlock(t *testing.T) {
	def := testTarget()
	def.Type["Features"] = "C$type"
	def.Dependencies = &target.Dependencies{
		AllClassDependencies:         strPtr("import $classlist"),
		ConstructedClassDependencies: strPtr("new $classlist"),
		EnumDependencies:             strPtr("enums $enums"),
		AllDependencies:              strPtr("$allClassDependencies\n$constructedClassDependencies\n$enumDependencies\n"),
		DependencyListElementEnum:    strPtr("$type.$value"),
	}
	tr := newTranslator(t, def)

	enum := func(typ, value string) ast.Line {
		return stmt(ast.ExprStmt{Expr: ast.EnumRef{EnumType: typ, Value: value}})
	}
	prog := ast.Program{
		construct("KNN", "knn"),
		copyInit(ast.ObjectType{Name: "Labels"}, "l", ast.Identifier{Name: "x"}),
		construct("Features", "f"),
		enum("b", "X"),
		enum("a", "Y"),
		enum("a", "X"),
		enum("a", "X"),
	}
	res := translate(t, tr, prog, Params{})

	deps := strings.SplitN(res.Output, "|", 2)[0]
	assert.Equal(t, "import Features, KNN, Labels\nnew CFeatures, KNN\nenums a.X, a.Y, b.X\n", deps)
	assert.Equal(t, []string{"Features", "KNN"}, res.Dependencies.ConstructedClasses)
}

func TestDependencyBlockEmpty(t *testing.T) {
	def := testTarget()
	def.Dependencies = &target.Dependencies{
		AllClassDependencies: strPtr("import $classlist"),
		AllDependencies:      strPtr("$allClassDependencies\n"),
	}
	tr := newTranslator(t, def)

	t.Run("no object types", func(t *testing.T) {
		prog := ast.Program{copyInit(ast.BasicType{Name: "int"}, "k", ast.NumberLiteral{Text: "3"})}
		res := translate(t, tr, prog, Params{})
		assert.Equal(t, "|int k = 3;\n|", res.Output)
	})

	t.Run("category without template", func(t *testing.T) {
		prog := ast.Program{stmt(ast.ExprStmt{Expr: ast.EnumRef{EnumType: "E", Value: "V"}})}
		res := translate(t, tr, prog, Params{})
		assert.Equal(t, "|E::V;\n|", res.Output)
	})

	t.Run("no dependencies section", func(t *testing.T) {
		res := translate(t, newTranslator(t, testTarget()), ast.Program{construct("KNN", "knn")}, Params{})
		assert.Equal(t, "|KNN knn();\n|", res.Output)
	})
}

func TestIncludeResolution(t *testing.T) {
	def := testTarget()
	def.Type["Default"] = "C$type"
	def.Type["RealVector"] = "SGVector<float64_t>"
	def.Dependencies = &target.Dependencies{
		AllClassDependencies:       strPtr("$classlist"),
		AllDependencies:            strPtr("$allClassDependencies\n"),
		DependencyListElementClass: strPtr("#include <shogun/$include>"),
		DependencyListSeparator:    strPtr("\n"),
	}
	tr := newTranslator(t, def)
	tagMap := tags.Map{
		"CKNN":     "multiclass/KNN.h",
		"SGVector": "lib/SGVector.h",
		"CLabels":  "labels/Labels.h",
	}

	prog := ast.Program{construct("KNN", "knn"), construct("RealVector", "v"), construct("Labels", "l")}
	res := translate(t, tr, prog, Params{Tags: tagMap})

	deps := strings.SplitN(res.Output, "|", 2)[0]
	assert.Equal(t, "#include <shogun/multiclass/KNN.h>\n#include <shogun/labels/Labels.h>\n#include <shogun/lib/SGVector.h>\n", deps)

	_, err := tr.Translate(context.Background(), ast.Program{construct("Foo", "foo")}, Params{Tags: tagMap})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyResolution))
	assert.Contains(t, err.Error(), "CFoo or CCFoo or CFoo or CCFoo")
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestIncludeNotNeededWithoutPlaceholder(t *testing.T) {
	def := testTarget()
	def.Dependencies = &target.Dependencies{
		AllClassDependencies:       strPtr("$classlist"),
		AllDependencies:            strPtr("$allClassDependencies"),
		DependencyListElementClass: strPtr("use $element;"),
		DependencyListSeparator:    strPtr(" "),
	}
	res := translate(t, newTranslator(t, def), ast.Program{construct("B", "b"), construct("A", "a")}, Params{})
	assert.True(t, strings.HasPrefix(res.Output, "use A; use B;|"))
}

func TestExpressions(t *testing.T) {
	tr := newTranslator(t, testTarget())

	nested := ast.ArgumentList{
		ast.Identifier{Name: "a"},
		ast.ArgumentList{ast.NumberLiteral{Text: "1e-3"}, ast.ArgumentList{ast.StringLiteral{Value: "s"}}},
		ast.BoolLiteral{Value: false},
	}
	prog := ast.Program{
		stmt(ast.ExprStmt{Expr: ast.MethodCall{Object: "knn", Method: "train"}}),
		stmt(ast.ExprStmt{Expr: ast.MethodCall{Object: "knn", Method: "apply", Args: ast.ArgumentList{}}}),
		stmt(ast.ExprStmt{Expr: ast.MethodCall{Object: "o", Method: "m", Args: nested}}),
		stmt(ast.Assign{Name: "k", Expr: ast.Identifier{Name: "j"}}),
		stmt(ast.BlankLine{}),
		stmt(ast.Print{Expr: ast.BoolLiteral{Value: true}}),
		ast.CommentLine{Text: " done"},
	}
	res := translate(t, tr, prog, Params{})

	want := "knn.train();\n" +
		"knn.apply();\n" +
		"o.m(a, 1e-3, \"s\", false);\n" +
		"k = j;\n" +
		"\n" +
		"print(true);\n" +
		"# done\n"
	assert.Equal(t, "|"+want+"|", res.Output)
}

func TestDeterminism(t *testing.T) {
	def := testTarget()
	def.Dependencies = &target.Dependencies{
		AllClassDependencies: strPtr("$classlist"),
		EnumDependencies:     strPtr("$enums"),
		AllDependencies:      strPtr("$allClassDependencies;$enumDependencies"),
	}
	tr := newTranslator(t, def)

	var prog ast.Program
	for _, name := range []string{"Zeta", "Alpha", "Mid", "Beta", "Omega", "Gamma"} {
		prog = append(prog, construct(name, strings.ToLower(name)))
		prog = append(prog, stmt(ast.ExprStmt{Expr: ast.EnumRef{EnumType: "E" + name, Value: "V"}}))
	}

	first := translate(t, tr, prog, Params{StoreVars: true, ProgramName: "d"})
	for i := 0; i < 20; i++ {
		again := translate(t, newTranslator(t, def), prog, Params{StoreVars: true, ProgramName: "d"})
		require.Equal(t, first.Output, again.Output)
	}
}

func TestStateIsolation(t *testing.T) {
	def := testTarget()
	def.Dependencies = &target.Dependencies{
		AllClassDependencies: strPtr("$classlist"),
		AllDependencies:      strPtr("$allClassDependencies"),
	}

	progA := ast.Program{
		construct("RealMatrix", "m"),
		stmt(ast.ExprStmt{Expr: ast.EnumRef{EnumType: "E", Value: "V"}}),
	}
	progB := ast.Program{construct("KNN", "knn")}
	p := Params{StoreVars: true, ProgramName: "b"}

	shared := newTranslator(t, def)
	translate(t, shared, progA, p)
	afterA := translate(t, shared, progB, p)

	fresh := translate(t, newTranslator(t, def), progB, p)
	assert.Equal(t, fresh, afterA)
	assert.Empty(t, afterA.Dependencies.Enums)
	assert.Empty(t, afterA.StoredVars)
}

func TestDependencyCompleteness(t *testing.T) {
	tr := newTranslator(t, testTarget())

	prog := ast.Program{
		construct("KNN", "knn", ast.NumberLiteral{Text: "3"}),
		copyInit(ast.ObjectType{Name: "Labels"}, "l", ast.MethodCall{Object: "knn", Method: "apply"}),
		copyInit(ast.BasicType{Name: "int"}, "k", ast.NumberLiteral{Text: "3"}),
		copyInit(ast.ObjectType{Name: "KNN"}, "knn2", ast.Identifier{Name: "knn"}),
		copyInit(ast.ObjectType{Name: "Distance"}, "d", ast.Identifier{Name: "x"}),
	}
	res := translate(t, tr, prog, Params{})

	assert.Equal(t, []string{"Distance", "KNN", "Labels"}, res.Dependencies.AllClasses)
	assert.Equal(t, []string{"KNN"}, res.Dependencies.ConstructedClasses)
	assert.Empty(t, res.Dependencies.Enums)
}

func TestConstructVersusCopy(t *testing.T) {
	tr := newTranslator(t, testTarget())

	onlyCopy := ast.Program{copyInit(ast.ObjectType{Name: "Labels"}, "l", ast.Identifier{Name: "x"})}
	res := translate(t, tr, onlyCopy, Params{})
	assert.Equal(t, []string{"Labels"}, res.Dependencies.AllClasses)
	assert.Empty(t, res.Dependencies.ConstructedClasses)

	both := append(onlyCopy, construct("Labels", "l2"))
	res = translate(t, tr, both, Params{})
	assert.Equal(t, []string{"Labels"}, res.Dependencies.ConstructedClasses)
}

func TestTemplateModes(t *testing.T) {
	def := testTarget()
	def.Program = "$program$extra"
	prog := ast.Program{construct("KNN", "knn")}

	_, err := newTranslator(t, def).Translate(context.Background(), prog, Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tmpl.ErrMissingPlaceholder))
	assert.Contains(t, err.Error(), "$extra")

	lenient, err := New(def, Options{Mode: tmpl.Permissive})
	require.NoError(t, err)
	res, err := lenient.Translate(context.Background(), prog, Params{})
	require.NoError(t, err)
	assert.Equal(t, "KNN knn();\n$extra", res.Output)
}

func TestNewRejectsBrokenTemplates(t *testing.T) {
	def := testTarget()
	def.Print = "print(${expr)"
	_, err := New(def, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, target.ErrInvalid))
	assert.Contains(t, err.Error(), "Print")

	def = testTarget()
	delete(def.Type, "Default")
	_, err = New(def, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Type.Default")

	_, err = New(nil, Options{})
	assert.Error(t, err)
}

func TestConcurrentTranslate(t *testing.T) {
	tr := newTranslator(t, testTarget())

	programs := make([]ast.Program, 8)
	want := make([]string, len(programs))
	for i := range programs {
		name := string(rune('A' + i))
		programs[i] = ast.Program{construct("Real"+name, "v"+name), construct("RealMatrix", "m")}
		want[i] = translate(t, newTranslator(t, testTarget()), programs[i], Params{StoreVars: true, ProgramName: name}).Output
	}

	var wg sync.WaitGroup
	got := make([]string, len(programs))
	errs := make([]error, len(programs))
	for i := range programs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := tr.Translate(context.Background(), programs[i], Params{StoreVars: true, ProgramName: string(rune('A' + i))})
			if err != nil {
				errs[i] = err
				return
			}
			got[i] = res.Output
		}(i)
	}
	wg.Wait()

	for i := range programs {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i], got[i])
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTranslator(t, testTarget()).Translate(ctx, ast.Program{}, Params{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuiltinPythonEndToEnd(t *testing.T) {
	def, err := target.NewRegistry("").Resolve("python")
	require.NoError(t, err)

	f, err := ast.Decode([]byte(`{
		"FilePath": "classifier/knn.sg",
		"Program": [
			{"Statement": {"Init": [{"ObjectType": "RealFeatures"}, {"Identifier": "feats"}, {"ArgumentList": {"Expr": {"StringLiteral": "train.dat"}}}]}},
			{"Statement": {"Init": [{"ObjectType": "KNN"}, {"Identifier": "knn"}, {"ArgumentList": [{"Expr": {"NumberLiteral": 3}}, {"Expr": {"Identifier": "feats"}}]}]}},
			{"Statement": {"Expr": {"MethodCall": [{"Identifier": "knn"}, {"Identifier": "train"}]}}},
			{"Statement": {"Print": {"Expr": {"BoolLiteral": "True"}}}}
		]
	}`))
	require.NoError(t, err)

	res, err := newTranslator(t, def).TranslateFile(context.Background(), f, Params{})
	require.NoError(t, err)

	want := "from modshogun import KNN, RealFeatures\n\n" +
		"\n" +
		"feats = RealFeatures(\"train.dat\")\n" +
		"knn = KNN(3, feats)\n" +
		"knn.train()\n" +
		"print(True)\n" +
		"\n" +
		"\n"
	assert.Equal(t, want, res.Output)
}
