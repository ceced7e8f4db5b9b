package translator

import (
	"strings"

	"github.com/teranos/metagen/ast"
)

// Names used by the storage epilogue.
const (
	StorageVar     = "__sg_storage"
	StorageFileVar = "__sg_storage_file"

	storageType     = "WrappedObjectArray"
	storageFileType = "SerializableAsciiFile"

	// storageFileMode is 'w' as a character code
	storageFileMode = "119"
)

// epilogue builds the statements that serialize every tracked variable to
// "<program>.dat" and renders them through the statement translator, so
// their classes join the dependency sets.
func (r *run) epilogue() (string, error) {
	stmts := []ast.Statement{
		ast.Init{
			Type:        ast.ObjectType{Name: storageType},
			Name:        StorageVar,
			Initializer: ast.ConstructInit{Args: ast.Args()},
		},
		ast.Init{
			Type: ast.ObjectType{Name: storageFileType},
			Name: StorageFileVar,
			Initializer: ast.ConstructInit{Args: ast.Args(
				ast.StringLiteral{Value: r.params.ProgramName + ".dat"},
				ast.NumberLiteral{Text: storageFileMode},
			)},
		},
	}

	tracked := append([]string(nil), r.tracked...)
	for _, name := range tracked {
		if name == StorageVar || name == StorageFileVar {
			continue
		}
		stmts = append(stmts, ast.ExprStmt{Expr: ast.MethodCall{
			Object: StorageVar,
			Method: "append_wrapped",
			Args:   ast.Args(ast.Identifier{Name: name}, ast.StringLiteral{Value: name}),
		}})
		r.stored = append(r.stored, name)
	}

	stmts = append(stmts, ast.ExprStmt{Expr: ast.MethodCall{
		Object: StorageVar,
		Method: "save_serializable",
		Args:   ast.Args(ast.Identifier{Name: StorageFileVar}),
	}})

	var b strings.Builder
	for _, s := range stmts {
		text, err := r.statement(s)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
