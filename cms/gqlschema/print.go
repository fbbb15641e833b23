package gqlschema

import (
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

// printDefinitions renders merged definitions as SDL, sorted by type name
// so the output is stable between runs. The printer leaves descriptions
// out; they are only carried by the executable schema.
func printDefinitions(defs map[string]ast.Node) (string, error) {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := ast.NewDocument(&ast.Document{Definitions: make([]ast.Node, 0, len(names))})
	for _, name := range names {
		doc.Definitions = append(doc.Definitions, defs[name])
	}
	sdl, ok := printer.Print(doc).(string)
	if !ok {
		return "", fmt.Errorf("error printing schema")
	}
	return sdl + "\n", nil
}
