package css

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses stylesheets and inline style declarations.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// End of input or error
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				p.log.Debug("CSS parse error", zap.Error(parser.Err()))
			}
			return sheet

		case css.BeginAtRuleGrammar:
			// Media queries and friends have no meaning for native views
			p.skipAtRuleBlock(parser)
			sheet.Warnings = append(sheet.Warnings, "unsupported @-rule: "+string(data))
			p.log.Debug("Skipping @-rule", zap.String("rule", string(data)))

		case css.AtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "unsupported @-rule: "+string(data))
			p.log.Debug("Skipping @-rule", zap.String("rule", string(data)))

		case css.BeginRulesetGrammar:
			selectors := p.parseSelectors(data, parser.Values())
			props := p.parseDeclarations(parser)

			for _, selStr := range selectors {
				sel := p.parseSelector(selStr, sheet)
				if !sel.IsSimple() {
					continue
				}
				// every rule owns its properties
				own := make(map[string]Value, len(props))
				for k, v := range props {
					own[k] = v
				}
				sheet.Rules = append(sheet.Rules, Rule{Selector: sel, Properties: own})
			}
		}
	}
}

// ParseInline parses content of a style attribute. Property names are
// converted to camel case the way host reports computed style.
func (p *Parser) ParseInline(text string) map[string]string {
	out := make(map[string]string)

	parser := css.NewParser(parse.NewInput(strings.NewReader(text)), true)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				p.log.Debug("Inline style parse error", zap.String("style", text), zap.Error(parser.Err()))
			}
			return out
		case css.DeclarationGrammar:
			if values := parser.Values(); len(values) > 0 {
				out[PropertyName(string(data))] = p.parsePropertyValue(values).String()
			}
		case css.CustomPropertyGrammar:
			// custom properties are not part of computed style
			continue
		}
	}
}

// PropertyName converts CSS property name to camel case: "overflow-y"
// becomes "overflowY".
func PropertyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.Contains(name, "-") {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = b.Len() > 0
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSelectors extracts selector strings from token data.
func (p *Parser) parseSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	// Split by comma for grouped selectors
	var selectors []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// parseDeclarations parses property declarations until EndRulesetGrammar.
func (p *Parser) parseDeclarations(parser *css.Parser) map[string]Value {
	props := make(map[string]Value)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return props

		case css.DeclarationGrammar:
			values := parser.Values()
			if len(values) > 0 {
				props[string(data)] = p.parsePropertyValue(values)
			}

		case css.CustomPropertyGrammar:
			continue
		}
	}
}

// parsePropertyValue converts CSS tokens to a Value.
func (p *Parser) parsePropertyValue(tokens []css.Token) Value {
	if len(tokens) == 0 {
		return Value{}
	}

	// Build raw value string
	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	raw := strings.TrimSpace(strings.Join(rawParts, ""))

	val := Value{Raw: raw}

	if len(tokens) == 1 || (len(tokens) == 2 && tokens[1].TokenType == css.WhitespaceToken) {
		t := tokens[0]
		switch t.TokenType {
		case css.DimensionToken:
			val.Value, val.Unit = parseDimension(string(t.Data))
		case css.PercentageToken:
			val.Value, _ = strconv.ParseFloat(strings.TrimSuffix(string(t.Data), "%"), 64)
			val.Unit = "%"
		case css.NumberToken:
			val.Value, _ = strconv.ParseFloat(string(t.Data), 64)
		case css.IdentToken:
			val.Keyword = strings.ToLower(string(t.Data))
		case css.StringToken:
			val.Keyword = unquote(string(t.Data))
		case css.HashToken:
			// Color value
			val.Keyword = string(t.Data)
		}
		return val
	}

	// Functions and multi-value properties keep raw text
	val.Keyword = raw
	return val
}

// parseDimension extracts numeric value and unit from dimension token.
func parseDimension(s string) (float64, string) {
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}

	if numEnd == 0 {
		return 0, ""
	}

	num, _ := strconv.ParseFloat(s[:numEnd], 64)
	unit := strings.ToLower(s[numEnd:])
	return num, unit
}

// parseSelector parses a single selector string into a Selector.
func (p *Parser) parseSelector(selStr string, sheet *Stylesheet) Selector {
	selStr = strings.TrimSpace(selStr)
	sel := Selector{Raw: selStr}

	if strings.ContainsAny(selStr, "+~>") {
		sheet.Warnings = append(sheet.Warnings, "unsupported combinator selector: "+selStr)
		p.log.Debug("Skipping combinator selector", zap.String("selector", selStr))
		return sel
	}
	if strings.ContainsAny(selStr, "[:") {
		sheet.Warnings = append(sheet.Warnings, "unsupported selector: "+selStr)
		p.log.Debug("Skipping selector", zap.String("selector", selStr))
		return sel
	}

	parts := strings.Fields(selStr)
	if len(parts) == 0 {
		return sel
	}

	// rightmost part is the subject, the rest are ancestors
	var cur *Selector
	for _, part := range parts {
		s := p.parseCompound(part)
		if !s.IsSimple() {
			sheet.Warnings = append(sheet.Warnings, "unsupported selector: "+selStr)
			return sel
		}
		s.Ancestor = cur
		cur = &s
	}
	cur.Raw = selStr
	return *cur
}

// parseCompound parses "tag#id.class1.class2", any part is optional.
func (p *Parser) parseCompound(s string) Selector {
	sel := Selector{Raw: s}

	cut := strings.IndexAny(s, "#.")
	if cut < 0 {
		sel.Element = strings.ToLower(s)
		return sel
	}
	sel.Element = strings.ToLower(s[:cut])

	rest := s[cut:]
	for len(rest) > 0 {
		marker := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, "#.")
		if end < 0 {
			end = len(rest)
		}
		name := rest[:end]
		rest = rest[end:]
		if name == "" {
			return Selector{Raw: s}
		}
		if marker == '#' {
			sel.ID = name
		} else {
			sel.Classes = append(sel.Classes, name)
		}
	}
	return sel
}

// skipAtRuleBlock skips tokens until the matching end of an @-rule block.
func (p *Parser) skipAtRuleBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
