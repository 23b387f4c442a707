package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/faisalraja/testhttp/packages/value"
	"github.com/google/uuid"
)

// ErrInvalidArguments is wrapped by every argument error.
var ErrInvalidArguments = errors.New("invalid arguments")

// Prefix marks a built-in call in a template or path.
const Prefix = "$"

type Func func(args []string) (value.Value, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
	rand  *rand.Rand
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["randomInt"] = r.funcRandomInt
	r.funcs["uuid"] = funcUUID
	r.funcs["timestamp"] = r.funcTimestamp
	r.funcs["timestampMs"] = r.funcTimestampMs
	r.funcs["now"] = r.funcNow
	r.funcs["date"] = r.funcDate
	r.funcs["randomString"] = r.funcRandomString
	r.funcs["randomEmail"] = r.funcRandomEmail
	r.funcs["base64"] = oneArg(func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	})
	r.funcs["urlEncode"] = oneArg(url.QueryEscape)
	r.funcs["md5"] = oneArg(func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	})
	r.funcs["sha256"] = oneArg(func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	})
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Has reports whether name (without the $) is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Call evaluates a token of the form "$name arg1 arg2". handled is false when
// the token is not a $ call or names an unknown function.
func (r *Registry) Call(token string) (result value.Value, handled bool, err error) {
	if !strings.HasPrefix(token, Prefix) {
		return value.Null(), false, nil
	}
	fields := strings.Fields(token[len(Prefix):])
	if len(fields) == 0 {
		return value.Null(), false, nil
	}

	fn, ok := r.funcs[fields[0]]
	if !ok {
		return value.Null(), false, nil
	}

	result, err = fn(fields[1:])
	if err != nil {
		return value.Null(), true, fmt.Errorf("%s%s: %w", Prefix, fields[0], err)
	}
	return result, true, nil
}

func (r *Registry) funcRandomInt(args []string) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), fmt.Errorf("%w: want min and max, got %d arguments", ErrInvalidArguments, len(args))
	}
	lo, ok := new(big.Int).SetString(args[0], 10)
	if !ok {
		return value.Null(), fmt.Errorf("%w: min %q is not an integer", ErrInvalidArguments, args[0])
	}
	hi, ok := new(big.Int).SetString(args[1], 10)
	if !ok {
		return value.Null(), fmt.Errorf("%w: max %q is not an integer", ErrInvalidArguments, args[1])
	}
	if hi.Cmp(lo) < 0 {
		return value.Null(), fmt.Errorf("%w: max %s is less than min %s", ErrInvalidArguments, hi, lo)
	}
	// Ranges wider than int are allowed, so the draw is done in big.Int.
	span := new(big.Int).Sub(hi, lo)
	span.Add(span, big.NewInt(1))
	n := new(big.Int).Rand(r.rand, span)
	return value.String(n.Add(n, lo).String()), nil
}

func funcUUID(_ []string) (value.Value, error) {
	return value.String(uuid.New().String()), nil
}

func (r *Registry) funcTimestamp(_ []string) (value.Value, error) {
	return value.String(strconv.FormatInt(r.now().Unix(), 10)), nil
}

func (r *Registry) funcTimestampMs(_ []string) (value.Value, error) {
	return value.String(strconv.FormatInt(r.now().UnixMilli(), 10)), nil
}

func (r *Registry) funcNow(_ []string) (value.Value, error) {
	return value.String(r.now().UTC().Format(time.RFC3339)), nil
}

func (r *Registry) funcDate(args []string) (value.Value, error) {
	layout := "2006-01-02"
	if len(args) > 0 {
		layout = strings.Join(args, " ")
	}
	return value.String(r.now().UTC().Format(layout)), nil
}

func (r *Registry) funcRandomString(args []string) (value.Value, error) {
	length := 16
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return value.Null(), fmt.Errorf("%w: length %q is not a non-negative integer", ErrInvalidArguments, args[0])
		}
		length = n
	}
	return value.String(r.randomString(length, alphanumeric)), nil
}

func (r *Registry) funcRandomEmail(_ []string) (value.Value, error) {
	return value.String(r.randomString(10, lowercase) + "@example.com"), nil
}

func oneArg(fn func(string) string) Func {
	return func(args []string) (value.Value, error) {
		if len(args) != 1 {
			return value.Null(), fmt.Errorf("%w: want 1 argument, got %d", ErrInvalidArguments, len(args))
		}
		return value.String(fn(args[0])), nil
	}
}

const (
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
	alphanumeric = lowercase + "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func (r *Registry) randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[r.rand.Intn(len(charset))]
	}
	return string(result)
}
