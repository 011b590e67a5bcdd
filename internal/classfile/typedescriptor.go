package classfile

import (
	"fmt"
	"strings"

	"github.com/bytecast/jtc/internal/model"
)

// ParseFieldDescriptor converts a raw field descriptor ("I", "[Ljava/lang/String;", ...)
// into its structured model.JavaType.
func ParseFieldDescriptor(desc string) (model.JavaType, error) {
	t, rest, err := parseType(desc)
	if err != nil {
		return model.JavaType{}, err
	}
	if rest != "" {
		return model.JavaType{}, fmt.Errorf("trailing data in field descriptor %q", desc)
	}
	return t, nil
}

// ParseMethodDescriptor converts a raw method descriptor
// ("(ILjava/lang/String;)V") into ordered parameter types plus a return type.
func ParseMethodDescriptor(desc string) (params []model.JavaType, ret model.JavaType, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, model.JavaType{}, fmt.Errorf("method descriptor %q missing '('", desc)
	}
	rest := desc[1:]
	for !strings.HasPrefix(rest, ")") {
		var t model.JavaType
		t, rest, err = parseType(rest)
		if err != nil {
			return nil, model.JavaType{}, fmt.Errorf("parsing method descriptor %q: %w", desc, err)
		}
		params = append(params, t)
	}
	rest = rest[1:] // consume ')'
	ret, rest, err = parseType(rest)
	if err != nil {
		return nil, model.JavaType{}, fmt.Errorf("parsing return type of %q: %w", desc, err)
	}
	if rest != "" {
		return nil, model.JavaType{}, fmt.Errorf("trailing data in method descriptor %q", desc)
	}
	return params, ret, nil
}

// parseType parses one leading type off s, returning the type and the
// unconsumed remainder.
func parseType(s string) (model.JavaType, string, error) {
	if s == "" {
		return model.JavaType{}, "", fmt.Errorf("empty type descriptor")
	}
	switch s[0] {
	case 'V':
		return model.Void(), s[1:], nil
	case 'Z':
		return model.BoolT(), s[1:], nil
	case 'B':
		return model.JavaType{Kind: model.TByte}, s[1:], nil
	case 'C':
		return model.JavaType{Kind: model.TChar}, s[1:], nil
	case 'S':
		return model.JavaType{Kind: model.TShort}, s[1:], nil
	case 'I':
		return model.IntT(), s[1:], nil
	case 'J':
		return model.LongT(), s[1:], nil
	case 'F':
		return model.FloatT(), s[1:], nil
	case 'D':
		return model.DoubleT(), s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return model.JavaType{}, "", fmt.Errorf("unterminated object type in %q", s)
		}
		return model.ObjectT(s[1:end]), s[end+1:], nil
	case '[':
		elem, rest, err := parseType(s[1:])
		if err != nil {
			return model.JavaType{}, "", err
		}
		rank := 1
		referent := elem.Referent
		if elem.Kind == model.TArray {
			rank += elem.Rank
		}
		return model.JavaType{Kind: model.TArray, Elem: &elem, Rank: rank, Referent: referent}, rest, nil
	default:
		return model.JavaType{}, "", fmt.Errorf("unrecognized type tag %q in %q", s[0], s)
	}
}
