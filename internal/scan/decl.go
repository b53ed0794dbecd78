package scan

import "strings"

// FuncDecl describes a fragment recognised as a function definition:
// a return-type identifier, a name, a parenthesised parameter list and
// an opening brace.
type FuncDecl struct {
	ReturnType string
	Name       string
	Params     []string // parameter names, declared types stripped
}

// Void reports whether the declared return type produces no value.
func (d *FuncDecl) Void() bool { return d.ReturnType == "void" }

// MatchUsing recognises a namespace declaration of the form
// "using dotted.name;" (the semicolon is optional) and returns the
// namespace. Anything else, including "using" as an expression prefix,
// does not match.
func MatchUsing(line string) (string, bool) {
	rest, ok := keyword(line, "using")
	if !ok {
		return "", false
	}
	ns, rest := dottedName(rest)
	if ns == "" {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, ";")
	if strings.TrimSpace(rest) != "" {
		return "", false
	}
	return ns, true
}

// MatchFuncDecl recognises the head of a function definition fragment.
// The fragment may span multiple physical lines; only the head shape is
// checked here, the body is the compiler's problem.
func MatchFuncDecl(fragment string) (*FuncDecl, bool) {
	s := strings.TrimSpace(fragment)

	ret, s := dottedName(s)
	if ret == "" {
		return nil, false
	}
	s = strings.TrimLeft(s, " \t")
	end := ScanIdent(s, 0)
	if end == 0 {
		return nil, false
	}
	name := s[:end]
	s = strings.TrimLeft(s[end:], " \t")
	if s == "" || s[0] != '(' {
		return nil, false
	}
	close, ok := BalancedGroup(s, 0)
	if !ok {
		return nil, false
	}
	params, ok := paramNames(s[1 : close-1])
	if !ok {
		return nil, false
	}
	s = strings.TrimLeft(s[close:], " \t\r\n")
	if s == "" || s[0] != '{' {
		return nil, false
	}
	return &FuncDecl{ReturnType: ret, Name: name, Params: params}, true
}

// paramNames splits a parameter list on top-level commas and keeps the
// last identifier of each entry, so both "int a" and bare "a" yield "a".
func paramNames(list string) ([]string, bool) {
	if strings.TrimSpace(list) == "" {
		return nil, true
	}
	var names []string
	for _, part := range SplitTopLevel(list, ',') {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return nil, false
		}
		name := fields[len(fields)-1]
		if ScanIdent(name, 0) != len(name) {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}

// keyword strips an exact leading keyword followed by whitespace.
func keyword(s, kw string) (string, bool) {
	if !strings.HasPrefix(s, kw) {
		return s, false
	}
	rest := s[len(kw):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return s, false
	}
	return strings.TrimLeft(rest, " \t"), true
}

// dottedName consumes an identifier optionally extended by ".ident"
// segments and returns it with the remaining text.
func dottedName(s string) (string, string) {
	i := ScanIdent(s, 0)
	if i == 0 {
		return "", s
	}
	for i < len(s) && s[i] == '.' {
		j := ScanIdent(s, i+1)
		if j == i+1 {
			break
		}
		i = j
	}
	return s[:i], s[i:]
}
