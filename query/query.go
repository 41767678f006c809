// Package query parses wire-level sparse fieldset and include parameters,
// e.g. "fields[person]=name,email&fields=department.title&include=tasks",
// into a selection.Request.
package query

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/selection"
)

// --- Participle grammar structs ---

// Query parses: param ( '&' param )*
type Query struct {
	Params []*Param `parser:"( @@ ( '&' @@ )* )?"`
}

// Param is one of: fields or include.
type Param struct {
	Fields  *FieldsParam  `parser:"  @@"`
	Include *IncludeParam `parser:"| @@"`
}

// FieldsParam parses: fields[type]=a,b or fields=a.b,c
type FieldsParam struct {
	Type  string `parser:"'fields' ( '[' @Ident ']' )?"`
	Paths []Path `parser:"'=' ( @@ ( ',' @@ )* )?"`
}

// IncludeParam parses: include=a.b,c
type IncludeParam struct {
	Paths []Path `parser:"'include' '=' ( @@ ( ',' @@ )* )?"`
}

// Path parses a dot-separated field path.
type Path struct {
	Segments []string `parser:"@Ident ( '.' @Ident )*"`
}

// String returns the path in dotted form.
func (p Path) String() string {
	return strings.Join(p.Segments, ".")
}

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_-]*`},
	{Name: "Punct", Pattern: `[\[\]=&,.]`},
})

var queryParser = participle.MustBuild[Query](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a raw query string. A leading '?' is ignored and the input
// is URL-unescaped first.
func Parse(raw string) (selection.Request, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return selection.Request{}, fmt.Errorf("parse query: %w", err)
	}

	ast, err := queryParser.ParseString("query", unescaped)
	if err != nil {
		return selection.Request{}, fmt.Errorf("parse query: %w", err)
	}
	return convertAST(ast), nil
}

// Resolve parses raw and resolves it against the root transfer type.
func Resolve(reg *meta.Registry, root reflect.Type, raw string) (*selection.Spec, error) {
	req, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return selection.Resolve(reg, root, req)
}

// Encode renders req back into query form with sorted types.
func Encode(req selection.Request) string {
	var params []string
	types := make([]string, 0, len(req.Fields))
	for t := range req.Fields {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		params = append(params, fmt.Sprintf("fields[%s]=%s", t, strings.Join(req.Fields[meta.TypeID(t)], ",")))
	}
	if len(req.Attributes) > 0 {
		params = append(params, "fields="+strings.Join(req.Attributes, ","))
	}
	if len(req.Include) > 0 {
		params = append(params, "include="+strings.Join(req.Include, ","))
	}
	return strings.Join(params, "&")
}

func convertAST(ast *Query) selection.Request {
	var req selection.Request
	for _, p := range ast.Params {
		switch {
		case p.Fields != nil && p.Fields.Type != "":
			if req.Fields == nil {
				req.Fields = make(map[meta.TypeID][]string)
			}
			id := meta.TypeID(p.Fields.Type)
			if _, ok := req.Fields[id]; !ok {
				req.Fields[id] = []string{}
			}
			for _, path := range p.Fields.Paths {
				req.Fields[id] = append(req.Fields[id], path.String())
			}
		case p.Fields != nil:
			for _, path := range p.Fields.Paths {
				req.Attributes = append(req.Attributes, path.String())
			}
		case p.Include != nil:
			for _, path := range p.Include.Paths {
				req.Include = append(req.Include, path.String())
			}
		}
	}
	return req
}
