package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/faisalraja/testhttp/packages/value"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration

	body *value.Value
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyValue parses the body as JSON, falling back to the raw text when it
// is not JSON. The result is memoized.
func (r *Response) BodyValue() value.Value {
	if r.body == nil {
		v, ok := value.FromJSON(r.Body)
		if !ok {
			v = value.String(string(r.Body))
		}
		r.body = &v
	}
	return *r.body
}

// HeadersValue returns the headers as a mapping with case-insensitive keys.
func (r *Response) HeadersValue() value.Value {
	m := value.FoldMapping()
	for _, k := range sortedKeys(r.Headers) {
		m.Set(k, value.String(r.Headers[k]))
	}
	return m
}

// Field looks up an attribute of the response for dotted paths.
func (r *Response) Field(name string) value.Value {
	switch name {
	case "body", "json":
		return r.BodyValue()
	case "text":
		return value.String(r.BodyString())
	case "headers":
		return r.HeadersValue()
	case "status_code", "status":
		return value.Int(r.StatusCode)
	case "reason":
		return value.String(r.Reason())
	case "ok":
		return value.Bool(r.StatusCode < 400)
	case "elapsed_ms":
		return value.Number(float64(r.Duration.Microseconds()) / 1000)
	}
	return value.Null()
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "json")
}

// Reason is the status text without the code, e.g. "Not Found".
func (r *Response) Reason() string {
	prefix := strconv.Itoa(r.StatusCode) + " "
	return strings.TrimPrefix(r.Status, prefix)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
