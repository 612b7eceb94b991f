package pdftext

import (
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// kerningSpace is the TJ displacement (thousandths of an em) past which a gap
// is rendered as a word break.
const kerningSpace = -180

// contentStreamLines decodes the text-showing operators of one page's content
// stream into lines, using pdfcpu to locate and inflate the stream.
func contentStreamLines(ctx *model.Context, pageNr int) ([]string, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeContentStream(data), nil
}

type operand struct {
	str   string
	num   float64
	isStr bool
	isNum bool
}

// decodeContentStream walks a content stream token by token. Tj/TJ/'/" show
// text; Td/TD with a vertical offset, T* and a Tm that moves the baseline
// start a new line.
func decodeContentStream(data []byte) []string {
	var (
		lines    []string
		cur      strings.Builder
		operands []operand
		lastTmY  float64
		haveTmY  bool
	)
	flush := func() {
		if line := strings.TrimSpace(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}
	space := func() {
		if cur.Len() > 0 && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
	}
	nums := func() []float64 {
		var out []float64
		for _, o := range operands {
			if o.isNum {
				out = append(out, o.num)
			}
		}
		return out
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isWhite(c) || c == '[' || c == ']':
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteral(data[i:])
			operands = append(operands, operand{str: s, isStr: true})
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			// Inline dictionaries carry no text.
			end := strings.Index(string(data[i:]), ">>")
			if end < 0 {
				return append(lines, strings.TrimSpace(cur.String()))
			}
			i += end + 2
		case c == '<':
			s, n := readHex(data[i:])
			operands = append(operands, operand{str: s, isStr: true})
			i += n
		case c == '/':
			i++
			for i < len(data) && !isWhite(data[i]) && !isDelim(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isWhite(data[i]) && !isDelim(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(data[start:i])
			if f, err := strconv.ParseFloat(tok, 64); err == nil {
				operands = append(operands, operand{num: f, isNum: true})
				continue
			}
			switch tok {
			case "Tj":
				for _, o := range operands {
					if o.isStr {
						cur.WriteString(o.str)
					}
				}
			case "TJ":
				for _, o := range operands {
					switch {
					case o.isStr:
						cur.WriteString(o.str)
					case o.isNum && o.num < kerningSpace:
						space()
					}
				}
			case "'", "\"":
				flush()
				for _, o := range operands {
					if o.isStr {
						cur.WriteString(o.str)
					}
				}
			case "Td", "TD":
				if n := nums(); len(n) >= 2 && n[1] != 0 {
					flush()
				} else {
					space()
				}
			case "T*":
				flush()
			case "Tm":
				if n := nums(); len(n) >= 6 {
					if haveTmY && n[5] != lastTmY {
						flush()
					} else {
						space()
					}
					lastTmY, haveTmY = n[5], true
				}
			case "ID":
				// Skip inline image data up to EI.
				if end := strings.Index(string(data[i:]), "EI"); end >= 0 {
					i += end + 2
				} else {
					i = len(data)
				}
			}
			operands = operands[:0]
		}
	}
	flush()
	return lines
}

// readLiteral decodes a balanced (...) string and returns it with the number
// of bytes consumed.
func readLiteral(data []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '(':
			if depth > 0 {
				sb.WriteByte('(')
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return latin1(sb.String()), i + 1
			}
			sb.WriteByte(')')
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\n', '\r':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
		default:
			sb.WriteByte(c)
		}
	}
	return latin1(sb.String()), len(data)
}

// readHex decodes a <...> hex string.
func readHex(data []byte) (string, int) {
	end := strings.IndexByte(string(data), '>')
	if end < 0 {
		return "", len(data)
	}
	digits := make([]byte, 0, end)
	for _, c := range data[1:end] {
		if !isWhite(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return latin1(string(out)), end + 1
}

// latin1 widens single-byte text to runes; the secondary source only has to
// recover ASCII page numbers and titles.
func latin1(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b < 0x20 && b != '\n' && b != '\t' {
			continue
		}
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
