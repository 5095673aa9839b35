// Package xmlfield extracts tag values and blocks from the small, flat XML
// documents the platform sends. Matching is first-occurrence substring search.
// Tags must not carry attributes and are not namespace-aware.
package xmlfield

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// Value returns the content of the first <tag>…</tag> in doc. A CDATA section
// is unwrapped; otherwise the plain text is returned as is. An absent tag
// yields "".
func Value(doc, tag string) string {
	inner, ok := content(doc, tag)
	if !ok {
		return ""
	}

	trimmed := strings.TrimSpace(inner)
	if strings.HasPrefix(trimmed, cdataOpen) {
		if end := strings.Index(trimmed, cdataClose); end >= 0 {
			return trimmed[len(cdataOpen):end]
		}
	}
	return inner
}

// Block returns the first <tag>…</tag> span of doc including both tags.
func Block(doc, tag string) (string, bool) {
	open, closing := "<"+tag+">", "</"+tag+">"

	start := strings.Index(doc, open)
	if start < 0 {
		return "", false
	}
	end := strings.Index(doc[start+len(open):], closing)
	if end < 0 {
		return "", false
	}
	return doc[start : start+len(open)+end+len(closing)], true
}

// RequireBlock is Block for structures that must be present. A missing
// block is reported as model.ErrMalformedInput.
func RequireBlock(doc, tag string) (string, error) {
	b, ok := Block(doc, tag)
	if !ok {
		return "", fmt.Errorf("%w: <%s> block not found", model.ErrMalformedInput, tag)
	}
	return b, nil
}

// ExtAttrItems parses the <Item> children of an ExtAttr block. Text items
// carry Value, web items carry Web. Items of any other type keep only Name
// and the reported Type; a missing or non-numeric type is
// model.ExtAttrTypeUnset.
func ExtAttrItems(block string) []model.ExtAttrItem {
	var items []model.ExtAttrItem

	rest := block
	for {
		item, ok := Block(rest, "Item")
		if !ok {
			break
		}
		rest = rest[strings.Index(rest, item)+len(item):]

		attr := model.ExtAttrItem{
			Name: Value(item, "Name"),
			Type: extAttrType(Value(item, "Type")),
		}
		switch attr.Type {
		case model.ExtAttrTypeText:
			attr.Value = Value(item, "Value")
		case model.ExtAttrTypeWeb:
			attr.Web = &model.ExtAttrWeb{
				Title: Value(item, "Title"),
				URL:   Value(item, "Url"),
			}
		}
		items = append(items, attr)
	}

	return items
}

func extAttrType(s string) model.ExtAttrType {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return model.ExtAttrTypeUnset
	}
	return model.ExtAttrType(n)
}

// Int returns Value parsed as a base-10 integer, or 0 when absent or invalid.
func Int(doc, tag string) int {
	n, err := strconv.Atoi(strings.TrimSpace(Value(doc, tag)))
	if err != nil {
		return 0
	}
	return n
}

// Ints splits a comma-separated Value into integers, skipping invalid entries.
func Ints(doc, tag string) []int {
	var out []int
	for _, s := range Strings(doc, tag) {
		if n, err := strconv.Atoi(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Strings splits a comma-separated Value, dropping empty entries.
func Strings(doc, tag string) []string {
	v := Value(doc, tag)
	if v == "" {
		return nil
	}

	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func content(doc, tag string) (string, bool) {
	open, closing := "<"+tag+">", "</"+tag+">"

	start := strings.Index(doc, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(doc[start:], closing)
	if end < 0 {
		return "", false
	}
	return doc[start : start+end], true
}
