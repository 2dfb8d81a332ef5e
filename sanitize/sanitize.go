/*
	Package sanitize rewrites secrets out of a dotenv file before it is
	shipped inside a package.

	A rule set maps KEY to the literal value the shipped copy should carry.
	Lines are rewritten in place; comments, blank lines, and keys without a
	rule come through untouched, so the shipped file still documents which
	settings the installation expects.
*/
package sanitize

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

// SecretPlaceholder as a rule value asks for a freshly generated
// application key instead of a literal.
const SecretPlaceholder = "generate:app-key"

type Rules map[string]string

type Change struct {
	Key string
	Old string
	New string
}

type Sanitizer struct {
	Rules Rules
	Log   *log.Logger
	Rand  io.Reader // source for generated secrets; crypto/rand when nil
}

// SanitizeFile rewrites the file at path in place, keeping its permissions.
func (s *Sanitizer) SanitizeFile(path string) ([]Change, error) {
	logger := s.logger()
	info, err := os.Stat(path)
	if err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot sanitize %s: %s", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot sanitize %s: %s", path, err)
	}
	out, changes, err := s.Sanitize(content)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot write sanitized %s: %s", path, err)
	}
	for _, c := range changes {
		logger.Info("sanitized env value", "file", path, "key", c.Key, "from", Mask(c.Old), "to", Mask(c.New))
	}
	logger.Debug("sanitized env file", "file", path, "changes", len(changes))
	return changes, nil
}

// Sanitize applies the rules to dotenv content.
// Output ends in exactly one newline (none for empty input) and keeps
// CRLF line endings where the input had them.
// With only literal rules, Sanitize(Sanitize(x)) == Sanitize(x).
func (s *Sanitizer) Sanitize(content []byte) ([]byte, []Change, error) {
	text := strings.TrimRight(string(content), "\r\n")
	if text == "" {
		return nil, nil, nil
	}
	lines := strings.Split(text, "\n")
	var changes []Change
	for i, line := range lines {
		body := strings.TrimSuffix(line, "\r")
		eol := line[len(body):]

		trimmed := strings.TrimSpace(body)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eq := strings.IndexByte(body, '=')
		if eq < 0 {
			continue
		}
		keyPart := body[:eq]
		key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(keyPart), "export "))
		replacement, ok := s.Rules[key]
		if !ok {
			continue
		}
		if replacement == SecretPlaceholder {
			secret, err := GenerateSecret(s.Rand)
			if err != nil {
				return nil, nil, err
			}
			replacement = secret
		}
		old := strings.TrimSpace(body[eq+1:])
		lines[i] = keyPart + "=" + replacement + eol
		changes = append(changes, Change{Key: key, Old: old, New: replacement})
	}
	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}
	return []byte(strings.Join(lines, "\n") + eol), changes, nil
}

// GenerateSecret returns a fresh application key in the "base64:" form
// Laravel expects: 32 random bytes, standard base64.
func GenerateSecret(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, 32)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", Errorf(updategen.ErrIO, "cannot generate secret: %s", err)
	}
	return "base64:" + base64.StdEncoding.EncodeToString(buf), nil
}

// Mask renders a value safe for logs.
// Longer than four characters: the first and last two survive.
// Four or fewer: all stars.  Empty: "(empty)".
func Mask(v string) string {
	runes := []rune(v)
	switch n := len(runes); {
	case n == 0:
		return "(empty)"
	case n <= 4:
		return strings.Repeat("*", n)
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

func (s *Sanitizer) logger() *log.Logger {
	if s.Log == nil {
		return log.New(io.Discard)
	}
	return s.Log
}
