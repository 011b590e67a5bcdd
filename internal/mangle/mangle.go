// Package mangle computes deterministic, collision-free emission names for
// every ClassModel, FieldModel, and MethodModel, so Emit never has to
// invent a name on the fly or worry about two distinct JVM identifiers
// colliding once sanitized into the target language's identifier grammar.
package mangle

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"

	"github.com/bytecast/jtc/internal/model"
)

// Mangler assigns EmissionName fields across a resolved ProgramModel.
type Mangler struct {
	// ClassPrefix is prepended to every emitted class symbol, letting the
	// caller namespace output from multiple translation runs.
	ClassPrefix string
}

// New returns a Mangler with no class prefix.
func New() *Mangler {
	return &Mangler{}
}

// MangleProgram walks every class in program and fills in EmissionName on
// each FieldModel and MethodModel, plus a derived class symbol. Names are
// computed independently per class, so the result does not depend on map
// iteration order.
func (m *Mangler) MangleProgram(program *model.ProgramModel) {
	for _, c := range program.Classes {
		m.mangleClass(c)
	}
}

func (m *Mangler) mangleClass(c *model.ClassModel) {
	classSym := m.ClassPrefix + sanitizeIdentifier(c.Name)

	fieldsByName := make(map[string]int)
	for _, f := range c.Fields {
		fieldsByName[sanitizeIdentifier(f.Name)]++
	}
	for _, f := range c.Fields {
		base := classSym + "_f_" + sanitizeIdentifier(f.Name)
		if fieldsByName[sanitizeIdentifier(f.Name)] > 1 {
			// Two fields of the same owner share a sanitized name when they
			// differ only in type or only in characters sanitizing drops;
			// hashing name and type keeps them apart.
			base += "_" + descriptorHash(f.Name+f.Type.String())
		}
		f.EmissionName = base
	}

	methodsByName := make(map[string]int)
	for _, meth := range c.Methods {
		methodsByName[sanitizeIdentifier(mangleMethodName(meth.Name))]++
	}
	for _, meth := range c.Methods {
		base := classSym + "_m_" + sanitizeIdentifier(mangleMethodName(meth.Name))
		if methodsByName[sanitizeIdentifier(mangleMethodName(meth.Name))] > 1 {
			base += "_" + descriptorHash(meth.Name+meth.Descriptor)
		}
		meth.EmissionName = base
	}
}

// mangleMethodName strips the angle brackets off constructor/static-init
// pseudo-names ("<init>" -> "init", "<clinit>" -> "clinit") since the
// target language's identifier grammar forbids them outright.
func mangleMethodName(name string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(name)
}

// sanitizeIdentifier NFC-normalizes name, replaces the slash/dollar/dot
// internal-name separators with underscores, and strips or escapes any
// remaining byte outside the target identifier grammar.
func sanitizeIdentifier(name string) string {
	normalized := norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(normalized))
	for i, r := range normalized {
		switch {
		case r == '/' || r == '.' || r == '$':
			b.WriteByte('_')
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	return out
}

// descriptorHash returns an 8-hex-character SHA3-256 digest of s, used as
// a short, deterministic disambiguation suffix for overloaded members.
func descriptorHash(s string) string {
	sum := sha3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
