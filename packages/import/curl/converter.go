// Package curl converts curl command lines into testhttp definitions.
package curl

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/faisalraja/testhttp/packages/core/parser"
)

// Converter converts curl commands to testhttp definitions.
type Converter struct {
	generateAssertions bool
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithAssertions configures whether a status assertion is generated.
func WithAssertions(generate bool) Option {
	return func(c *Converter) {
		c.generateAssertions = generate
	}
}

func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		generateAssertions: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command is a parsed curl invocation. Headers keep their command-line
// order.
type Command struct {
	Method    string
	URL       string
	Headers   []*parser.Header
	Body      string
	BasicAuth string
}

// Header returns the value of the first header named key, ignoring case.
func (c *Command) Header(key string) (string, bool) {
	for _, h := range c.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

func (c *Command) setHeader(key, value string) {
	for _, h := range c.Headers {
		if strings.EqualFold(h.Key, key) {
			h.Value = value
			return
		}
	}
	c.Headers = append(c.Headers, &parser.Header{Key: key, Value: value})
}

// Convert parses every command in r, one per line with backslash
// continuations, and returns them as a document. Blank lines and lines
// starting with # are skipped.
func (c *Converter) Convert(r io.Reader) (*parser.Document, error) {
	var commands []string
	var current strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "\\") {
			current.WriteString(strings.TrimSuffix(line, "\\"))
			current.WriteString(" ")
			continue
		}
		current.WriteString(line)
		commands = append(commands, current.String())
		current.Reset()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands: %w", err)
	}
	if current.Len() > 0 {
		commands = append(commands, current.String())
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("no curl commands found")
	}

	doc := &parser.Document{}
	names := make(map[string]int)
	for i, line := range commands {
		cmd, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		def, err := c.Definition(cmd)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		name := def.Name()
		if names[name]++; names[name] > 1 {
			def.Meta["name"] = fmt.Sprintf("%s_%d", name, names[name])
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	return doc, nil
}

// ConvertFile converts a file of curl commands.
func (c *Converter) ConvertFile(path string) (*parser.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return c.Convert(f)
}

// Parse parses a single curl command line.
func Parse(line string) (*Command, error) {
	tokens := tokenize(strings.TrimSpace(line))
	if len(tokens) > 0 && tokens[0] == "curl" {
		tokens = tokens[1:]
	}

	cmd := &Command{}
	explicitMethod := false

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		// value returns the argument of the current flag.
		value := func() (string, error) {
			if i+1 >= len(tokens) {
				return "", fmt.Errorf("missing value for %s", token)
			}
			i++
			return tokens[i], nil
		}

		var (
			v   string
			err error
		)
		switch token {
		case "-X", "--request":
			if v, err = value(); err == nil {
				cmd.Method = strings.ToUpper(v)
				explicitMethod = true
			}
		case "-H", "--header":
			if v, err = value(); err == nil {
				if key, val, ok := strings.Cut(v, ":"); ok {
					cmd.setHeader(strings.TrimSpace(key), strings.TrimSpace(val))
				}
			}
		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			if v, err = value(); err == nil {
				if cmd.Body != "" {
					cmd.Body += "&"
				}
				cmd.Body += v
			}
		case "--json":
			if v, err = value(); err == nil {
				cmd.Body = v
				cmd.setHeader("Content-Type", "application/json")
				cmd.setHeader("Accept", "application/json")
			}
		case "-u", "--user":
			v, err = value()
			cmd.BasicAuth = v
		case "-A", "--user-agent":
			if v, err = value(); err == nil {
				cmd.setHeader("User-Agent", v)
			}
		case "-e", "--referer":
			if v, err = value(); err == nil {
				cmd.setHeader("Referer", v)
			}
		case "-b", "--cookie":
			if v, err = value(); err == nil {
				cmd.setHeader("Cookie", v)
			}
		case "--url":
			v, err = value()
			cmd.URL = v
		default:
			if strings.HasPrefix(token, "-") {
				// Unknown flag; skip its value when it plainly has one.
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i++
				}
				continue
			}
			if cmd.URL == "" && isURL(token) {
				cmd.URL = token
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if cmd.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}
	if !explicitMethod {
		cmd.Method = parser.DefaultMethod
		if cmd.Body != "" {
			cmd.Method = "POST"
		}
	}
	return cmd, nil
}

// Definition turns a parsed command into a definition named after its
// method and path.
func (c *Converter) Definition(cmd *Command) (*parser.Definition, error) {
	if !supportedMethod(cmd.Method) {
		return nil, fmt.Errorf("method %s is not supported", cmd.Method)
	}

	def := &parser.Definition{
		Method: cmd.Method,
		URL:    cmd.URL,
		Meta:   map[string]string{"name": generateName(cmd.URL, cmd.Method)},
	}
	for _, h := range cmd.Headers {
		def.Headers = append(def.Headers, &parser.Header{Key: h.Key, Value: h.Value})
	}
	if cmd.BasicAuth != "" {
		def.Headers = append(def.Headers, &parser.Header{Key: "Authorization", Value: "Basic " + basicAuth(cmd.BasicAuth)})
	}
	if cmd.Body != "" {
		def.Body = &parser.Body{Raw: cmd.Body}
	}
	if c.generateAssertions {
		def.Assertions = []*parser.Assertion{{Expression: "200 <= response.status_code < 400"}}
	}
	return def, nil
}

// basicAuth encodes credentials with the $base64 built-in when they fit in
// a single built-in argument, and eagerly otherwise.
func basicAuth(creds string) string {
	if strings.ContainsAny(creds, " \t{}") {
		return base64.StdEncoding.EncodeToString([]byte(creds))
	}
	return "{{$base64 " + creds + "}}"
}

func supportedMethod(method string) bool {
	for _, m := range parser.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// tokenize splits a command line into shell words, honoring quotes and
// backslash escapes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false
	started := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch {
		case r == '\\' && !inSingleQuote:
			escaped = true
		case r == '\'' && !inDoubleQuote:
			inSingleQuote = !inSingleQuote
			started = true
		case r == '"' && !inSingleQuote:
			inDoubleQuote = !inDoubleQuote
			started = true
		case (r == ' ' || r == '\t') && !inSingleQuote && !inDoubleQuote:
			if started || current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if started || current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "{{")
}

var (
	pathPattern    = regexp.MustCompile(`^(?:https?://[^/?#]+)?(/[^?#]*)?`)
	nonWordPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// generateName builds an identifier such as get_users_42 from the method
// and URL path.
func generateName(rawURL, method string) string {
	path := ""
	if m := pathPattern.FindStringSubmatch(rawURL); len(m) > 1 {
		path = m[1]
	}
	path = strings.Trim(nonWordPattern.ReplaceAllString(path, "_"), "_")
	if path == "" {
		path = "root"
	}
	return strings.ToLower(method) + "_" + strings.ToLower(path)
}
