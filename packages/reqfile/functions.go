package reqfile

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Built-in template functions callable as {{name(args)}}. Arguments are
// comma-separated and may be single- or double-quoted.
var builtins = map[string]func(args []string) any{
	"now":          func([]string) any { return time.Now().UTC().Format(time.RFC3339) },
	"date":         builtinDate,
	"timestamp":    func([]string) any { return time.Now().Unix() },
	"timestampMs":  func([]string) any { return time.Now().UnixMilli() },
	"uuid":         func([]string) any { return uuid.NewString() },
	"random":       builtinRandom,
	"randomString": builtinRandomString,
	"randomEmail":  builtinRandomEmail,
	"base64":       builtinBase64,
	"base64Decode": builtinBase64Decode,
	"sha256":       builtinSHA256,
	"urlEncode":    builtinURLEncode,
}

var callPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// callBuiltin evaluates a function expression like `random(1, 10)`.
// The bool result reports whether the expression named a known function.
func callBuiltin(expr string) (any, bool) {
	matches := callPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false
	}

	fn, ok := builtins[matches[1]]
	if !ok {
		return nil, false
	}

	var args []string
	if matches[2] != "" {
		args = splitArgs(matches[2])
	}
	return fn(args), true
}

// splitArgs splits on commas outside quotes and trims the pieces.
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func builtinDate(args []string) any {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format)
}

func builtinRandom(args []string) any {
	lo, hi := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			lo = v
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			hi = v
		}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return rand.Intn(hi-lo+1) + lo
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func builtinRandomString(args []string) any {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			length = v
		}
	}
	return randomString(length, alphanumeric)
}

func builtinRandomEmail([]string) any {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.test", user, domain)
}

func builtinBase64(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func builtinBase64Decode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return ""
	}
	return string(decoded)
}

func builtinSHA256(args []string) any {
	if len(args) < 1 {
		return ""
	}
	sum := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(sum[:])
}

func builtinURLEncode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func randomString(length int, charset string) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = charset[rand.Intn(len(charset))]
	}
	return string(out)
}
