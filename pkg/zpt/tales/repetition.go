package tales

import (
	"strings"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

// RepetitionInfo is the loop state bound by tal:repeat for one iteration.
type RepetitionInfo struct {
	Name         string
	Node         *dom.Node
	CurrentIndex int
	CurrentValue any
	Count        int
}

func (r *RepetitionInfo) Index() int  { return r.CurrentIndex }
func (r *RepetitionInfo) Number() int { return r.CurrentIndex + 1 }
func (r *RepetitionInfo) Even() bool  { return r.CurrentIndex%2 == 0 }
func (r *RepetitionInfo) Odd() bool   { return !r.Even() }
func (r *RepetitionInfo) Start() bool { return r.CurrentIndex == 0 }
func (r *RepetitionInfo) End() bool   { return r.CurrentIndex == r.Count-1 }
func (r *RepetitionInfo) Length() int { return r.Count }

// Letter is the lowercase bijective base-26 label of the index.
func (r *RepetitionInfo) Letter() string { return Letter(r.CurrentIndex) }

// UppercaseLetter is Letter in upper case.
func (r *RepetitionInfo) UppercaseLetter() string { return strings.ToUpper(r.Letter()) }

// RomanNumeral is the upper-case roman numeral of Number.
func (r *RepetitionInfo) RomanNumeral() string { return Roman(r.Number()) }

// LowerRomanNumeral is RomanNumeral in lower case.
func (r *RepetitionInfo) LowerRomanNumeral() string { return strings.ToLower(r.RomanNumeral()) }

func (r *RepetitionInfo) GetValue(name string) (any, bool) {
	switch name {
	case "index":
		return r.Index(), true
	case "number":
		return r.Number(), true
	case "even":
		return r.Even(), true
	case "odd":
		return r.Odd(), true
	case "start":
		return r.Start(), true
	case "end":
		return r.End(), true
	case "length":
		return r.Length(), true
	case "letter":
		return r.Letter(), true
	case "Letter":
		return r.UppercaseLetter(), true
	case "roman":
		return r.LowerRomanNumeral(), true
	case "Roman":
		return r.RomanNumeral(), true
	case "item":
		return r.CurrentValue, true
	default:
		return nil, false
	}
}

// Letter converts a zero-based index to a bijective base-26 label:
// 0→a, 25→z, 26→aa, 27→ab.
func Letter(index int) string {
	if index < 0 {
		return ""
	}
	var buf []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		buf = append(buf, byte('a'+(n-1)%26))
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

var romanNumerals = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// Roman converts a positive number to upper-case roman numerals. Zero and
// negative numbers have no roman form and yield "".
func Roman(n int) string {
	var b strings.Builder
	for _, r := range romanNumerals {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	return b.String()
}
