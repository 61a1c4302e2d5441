package versatiles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VDL is a small tree syntax describing composer pipelines: nodes are
// chained with "|", carry optional [key=value,...] properties and
// optional {pipeline; pipeline} children. Comments run from '#' to the
// end of the line.

// VDLNode is one operation of a pipeline. Properties keep their values
// as raw strings; typed access happens at the composer boundary.
type VDLNode struct {
	Name       string
	Properties map[string][]string
	Children   []VDLPipeline
}

// VDLPipeline is an ordered chain of nodes.
type VDLPipeline struct {
	Nodes []VDLNode
}

func (n *VDLNode) property(field string) ([]string, bool) {
	values, ok := n.Properties[field]
	return values, ok
}

// PropertyString returns the single value of a required field.
func (n *VDLNode) PropertyString(field string) (string, error) {
	values, ok := n.property(field)
	if !ok {
		return "", configf("field '%s' does not exist", field)
	}
	if len(values) != 1 {
		return "", configf("field '%s' must have exactly one entry", field)
	}
	return values[0], nil
}

// PropertyStringOpt returns the single value of an optional field, or
// fallback when absent.
func (n *VDLNode) PropertyStringOpt(field, fallback string) (string, error) {
	if _, ok := n.property(field); !ok {
		return fallback, nil
	}
	return n.PropertyString(field)
}

// PropertyBool reads an optional boolean field; absent means false.
func (n *VDLNode) PropertyBool(field string) (bool, error) {
	if _, ok := n.property(field); !ok {
		return false, nil
	}
	value, err := n.PropertyString(field)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "ok":
		return true, nil
	default:
		return false, nil
	}
}

// PropertyNumber reads an optional numeric field, or fallback when
// absent.
func (n *VDLNode) PropertyNumber(field string, fallback float64) (float64, error) {
	if _, ok := n.property(field); !ok {
		return fallback, nil
	}
	value, err := n.PropertyString(field)
	if err != nil {
		return 0, err
	}
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, configf("field '%s' is not a number: %q", field, value)
	}
	return number, nil
}

// PropertyList returns all values of a field; absent means empty.
func (n *VDLNode) PropertyList(field string) []string {
	return n.Properties[field]
}

func (n VDLNode) String() string {
	var sb strings.Builder
	sb.WriteString(n.Name)
	if len(n.Properties) > 0 {
		keys := make([]string, 0, len(n.Properties))
		for key := range n.Properties {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		sb.WriteString("[")
		for i, key := range keys {
			for j, value := range n.Properties[key] {
				if i > 0 || j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(key)
				sb.WriteString("=")
				sb.WriteString(strconv.Quote(value))
			}
		}
		sb.WriteString("]")
	}
	if len(n.Children) > 0 {
		parts := make([]string, len(n.Children))
		for i, child := range n.Children {
			parts[i] = child.String()
		}
		sb.WriteString(" { ")
		sb.WriteString(strings.Join(parts, "; "))
		sb.WriteString(" }")
	}
	return sb.String()
}

func (p VDLPipeline) String() string {
	parts := make([]string, len(p.Nodes))
	for i, node := range p.Nodes {
		parts[i] = node.String()
	}
	return strings.Join(parts, " | ")
}

// ParseVDL parses one pipeline and requires it to span the whole input.
func ParseVDL(input string) (VDLPipeline, error) {
	p := &vdlParser{input: input}
	pipeline, err := p.parsePipeline()
	if err != nil {
		return VDLPipeline{}, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return VDLPipeline{}, p.errorf("unexpected character %q", p.input[p.pos])
	}
	return pipeline, nil
}

type vdlParser struct {
	input string
	pos   int
}

func (p *vdlParser) errorf(format string, args ...interface{}) error {
	return corruptf("vdl at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *vdlParser) skipSpace() {
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '#':
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *vdlParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *vdlParser) accept(c byte) bool {
	if got, ok := p.peek(); ok && got == c {
		p.pos++
		return true
	}
	return false
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func (p *vdlParser) parseIdent() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected identifier")
	}
	return p.input[start:p.pos], nil
}

func (p *vdlParser) parsePipeline() (VDLPipeline, error) {
	var pipeline VDLPipeline
	for {
		node, err := p.parseNode()
		if err != nil {
			return VDLPipeline{}, err
		}
		pipeline.Nodes = append(pipeline.Nodes, node)
		if !p.accept('|') {
			return pipeline, nil
		}
	}
}

func (p *vdlParser) parseNode() (VDLNode, error) {
	name, err := p.parseIdent()
	if err != nil {
		return VDLNode{}, err
	}
	node := VDLNode{Name: name, Properties: make(map[string][]string)}

	if p.accept('[') {
		if err := p.parseProps(&node); err != nil {
			return VDLNode{}, err
		}
	}
	if p.accept('{') {
		for {
			child, err := p.parsePipeline()
			if err != nil {
				return VDLNode{}, err
			}
			node.Children = append(node.Children, child)
			if p.accept(';') {
				continue
			}
			if p.accept('}') {
				break
			}
			return VDLNode{}, p.errorf("expected ';' or '}'")
		}
	}
	return node, nil
}

func (p *vdlParser) parseProps(node *VDLNode) error {
	if p.accept(']') {
		return nil
	}
	for {
		key, err := p.parseIdent()
		if err != nil {
			return err
		}
		if !p.accept('=') {
			return p.errorf("expected '=' after %q", key)
		}
		values, err := p.parseValue()
		if err != nil {
			return err
		}
		node.Properties[key] = append(node.Properties[key], values...)
		if p.accept(',') {
			continue
		}
		if p.accept(']') {
			return nil
		}
		return p.errorf("expected ',' or ']'")
	}
}

// parseValue reads one value: a quoted string, a bracketed list
// (flattened), or a bare token such as a number or boolean.
func (p *vdlParser) parseValue() ([]string, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errorf("expected value")
	}
	switch c {
	case '"', '\'':
		value, err := p.parseQuoted(c)
		if err != nil {
			return nil, err
		}
		return []string{value}, nil
	case '[':
		p.pos++
		var values []string
		if p.accept(']') {
			return values, nil
		}
		for {
			inner, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			values = append(values, inner...)
			if p.accept(',') {
				continue
			}
			if p.accept(']') {
				return values, nil
			}
			return nil, p.errorf("expected ',' or ']'")
		}
	default:
		start := p.pos
		for p.pos < len(p.input) && !strings.ContainsRune(" \t\n\r,]}|;", rune(p.input[p.pos])) {
			p.pos++
		}
		if p.pos == start {
			return nil, p.errorf("expected value")
		}
		return []string{p.input[start:p.pos]}, nil
	}
}

func (p *vdlParser) parseQuoted(quote byte) (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case quote:
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", p.errorf("unterminated escape")
			}
			switch p.input[p.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(p.input[p.pos])
			}
			p.pos++
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}
