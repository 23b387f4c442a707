package expr

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/faisalraja/testhttp/packages/value"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/net/html"
)

type function struct {
	minArgs int
	maxArgs int
	call    func(env Env, args []value.Value) (value.Value, error)
}

func (f function) arity() string {
	if f.minArgs == f.maxArgs {
		if f.minArgs == 1 {
			return "1 argument"
		}
		return fmt.Sprintf("%d arguments", f.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", f.minArgs, f.maxArgs)
}

var functions = map[string]function{
	"len":        {1, 1, fnLen},
	"contains":   {2, 2, fnContains},
	"startswith": {2, 2, textPredicate(strings.HasPrefix)},
	"endswith":   {2, 2, textPredicate(strings.HasSuffix)},
	"matches":    {2, 2, fnMatches},
	"lower":      {1, 1, textMap(strings.ToLower)},
	"upper":      {1, 1, textMap(strings.ToUpper)},
	"str":        {1, 1, fnStr},
	"int":        {1, 1, fnInt},
	"float":      {1, 1, fnFloat},
	"type":       {1, 1, fnType},
	"jsonpath":   {2, 2, fnJSONPath},
	"schema":     {2, 2, fnSchema},
	"css":        {2, 2, fnCSS},
}

// Functions lists the callable function names.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	return names
}

func fnLen(_ Env, args []value.Value) (value.Value, error) {
	n := args[0].Len()
	if n < 0 {
		return value.Null(), fmt.Errorf("%s has no length", args[0].Kind())
	}
	return value.Int(n), nil
}

func fnContains(_ Env, args []value.Value) (value.Value, error) {
	ok, err := contains(args[0], args[1])
	return value.Bool(ok), err
}

func textPredicate(pred func(s, affix string) bool) func(Env, []value.Value) (value.Value, error) {
	return func(_ Env, args []value.Value) (value.Value, error) {
		if !isText(args[0]) || !isText(args[1]) {
			return value.Null(), fmt.Errorf("want strings, got %s and %s", args[0].Kind(), args[1].Kind())
		}
		return value.Bool(pred(args[0].String(), args[1].String())), nil
	}
}

func textMap(fn func(string) string) func(Env, []value.Value) (value.Value, error) {
	return func(_ Env, args []value.Value) (value.Value, error) {
		if !isText(args[0]) {
			return value.Null(), fmt.Errorf("want string, got %s", args[0].Kind())
		}
		return value.String(fn(args[0].String())), nil
	}
}

func fnMatches(_ Env, args []value.Value) (value.Value, error) {
	if !isText(args[1]) {
		return value.Null(), fmt.Errorf("pattern must be a string, got %s", args[1].Kind())
	}
	re, err := regexp.Compile(args[1].String())
	if err != nil {
		return value.Null(), err
	}
	return value.Bool(re.MatchString(args[0].String())), nil
}

func fnStr(_ Env, args []value.Value) (value.Value, error) {
	return value.String(args[0].String()), nil
}

func fnInt(_ Env, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNumber:
		f, _ := v.Num()
		return value.Number(math.Trunc(f)), nil
	case value.KindBool:
		if b, _ := v.Boolean(); b {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.KindString, value.KindBytes:
		n, err := strconv.Atoi(strings.TrimSpace(v.String()))
		if err != nil {
			return value.Null(), fmt.Errorf("invalid integer %q", v.String())
		}
		return value.Int(n), nil
	}
	return value.Null(), fmt.Errorf("cannot convert %s to int", v.Kind())
}

func fnFloat(_ Env, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNumber:
		return v, nil
	case value.KindString, value.KindBytes:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return value.Null(), fmt.Errorf("invalid number %q", v.String())
		}
		return value.Number(f), nil
	}
	return value.Null(), fmt.Errorf("cannot convert %s to float", v.Kind())
}

func fnType(_ Env, args []value.Value) (value.Value, error) {
	return value.String(args[0].Kind().String()), nil
}

// jsonDocument returns the JSON text of v. Strings and bytes are taken as
// already-encoded JSON.
func jsonDocument(v value.Value) ([]byte, error) {
	if isText(v) {
		return []byte(v.String()), nil
	}
	return v.MarshalJSON()
}

func fnJSONPath(_ Env, args []value.Value) (value.Value, error) {
	doc, err := jsonDocument(args[0])
	if err != nil {
		return value.Null(), err
	}
	if !gjson.ValidBytes(doc) {
		return value.Null(), fmt.Errorf("document is not valid JSON")
	}
	r := gjson.GetBytes(doc, args[1].String())
	if !r.Exists() {
		return value.Null(), nil
	}
	return value.FromResult(r), nil
}

func fnSchema(env Env, args []value.Value) (value.Value, error) {
	path := args[1].String()
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.Dir, path)
	}
	schemaData, err := os.ReadFile(path)
	if err != nil {
		return value.Null(), fmt.Errorf("failed to read schema file: %w", err)
	}
	doc, err := jsonDocument(args[0])
	if err != nil {
		return value.Null(), err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return value.Null(), fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return value.Bool(true), nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return value.Null(), fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
}

// fnCSS returns the whitespace-normalized text of every element matching the
// selector.
func fnCSS(_ Env, args []value.Value) (value.Value, error) {
	sel, err := cascadia.Compile(args[1].String())
	if err != nil {
		return value.Null(), fmt.Errorf("bad selector: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader([]byte(args[0].String())))
	if err != nil {
		return value.Null(), err
	}

	matches := sel.MatchAll(doc)
	items := make([]value.Value, len(matches))
	for i, m := range matches {
		items[i] = value.String(strings.Join(strings.Fields(textContent(m)), " "))
	}
	return value.Sequence(items...), nil
}

var inlineElement = map[string]bool{
	"a": true, "abbr": true, "b": true, "code": true, "em": true, "i": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text := textContent(c)
		if c.Type == html.ElementNode && !inlineElement[c.Data] {
			text = " " + text + " "
		}
		sb.WriteString(text)
	}
	return sb.String()
}
