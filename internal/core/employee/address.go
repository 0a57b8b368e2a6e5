package employee

import (
	"regexp"
	"strings"
)

// addressPattern は "<street>, <city>, <state> <zip>" 形式の住所に一致します。
var addressPattern = regexp.MustCompile(`^\s*([^,]+?)\s*,\s*([^,]+?)\s*,\s*([A-Za-z][A-Za-z .]*?)\s+(\d{5}(?:-\d{4})?)\s*$`)

// ParseAddress は住所文字列を構造化します。形式が一致しなければ ErrInvalidAddress を返します。
func ParseAddress(raw string) (Address, error) {
	m := addressPattern.FindStringSubmatch(raw)
	if m == nil {
		return Address{}, ErrInvalidAddress
	}
	return Address{
		Street: m[1],
		City:   m[2],
		State:  strings.ToUpper(strings.TrimSpace(m[3])),
		Zip:    m[4],
	}, nil
}
