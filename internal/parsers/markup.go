package parsers

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var healthKitPrefixes = []string{
	"HKQuantityTypeIdentifier",
	"HKCategoryTypeIdentifier",
	"HKDataType",
}

// Markup parses XML health exports and HTML tables.
type Markup struct {
	MaxRows int
}

func (Markup) Format() Format { return FormatMarkup }

func (p Markup) Parse(ctx context.Context, data []byte, category string) Record {
	cat := LookupCategory(category)
	rec := Record{Format: FormatMarkup, Category: cat.Name}

	text := decodeText(data)
	if isHTML(text) {
		p.parseHTML(ctx, &rec, cat, text)
	} else {
		p.parseXML(&rec, cat, text)
	}
	return rec
}

func isHTML(text []byte) bool {
	head := bytes.ToLower(text[:min(len(text), 1024)])
	if bytes.Contains(head, []byte("<?xml")) {
		return false
	}
	return bytes.Contains(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<!doctype html")) ||
		bytes.Contains(head, []byte("<table"))
}

type xmlFrame struct {
	name     string
	text     strings.Builder
	children int
}

func (p Markup) parseXML(rec *Record, cat *Category, text []byte) {
	var (
		records   []Row
		attrRows  []Row
		leaves    Row
		stack     []*xmlFrame
		truncated bool
	)

	dec := xml.NewDecoder(bytes.NewReader(text))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rec.diagnose(SeverityWarning, 0, "malformed markup: "+err.Error())
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if n := len(stack); n > 0 {
				stack[n-1].children++
			}
			stack = append(stack, &xmlFrame{name: t.Name.Local})

			switch {
			case p.MaxRows > 0 && len(records)+len(attrRows) >= p.MaxRows:
				truncated = true
			case isHealthRecord(t):
				records = append(records, healthRecordRow(t))
			case len(stack) > 1 && len(t.Attr) > 0:
				attrRows = append(attrRows, attributeRow(cat, t))
			}

		case xml.CharData:
			if n := len(stack); n > 0 {
				stack[n-1].text.Write(t)
			}

		case xml.EndElement:
			n := len(stack)
			if n == 0 {
				continue
			}
			frame := stack[n-1]
			stack = stack[:n-1]
			if value := strings.TrimSpace(frame.text.String()); value != "" && frame.children == 0 && n > 1 {
				leaves.Set(frame.name, coerce(value))
			}
		}
	}

	if truncated {
		rec.diagnose(SeverityWarning, 0, fmt.Sprintf("row limit %d reached; remaining elements ignored", p.MaxRows))
	}

	switch {
	case len(records) > 0:
		rec.Meta = map[string]any{"shape": "apple_health"}
		valid := 0
		for _, row := range records {
			rec.Rows = append(rec.Rows, row)
			if missing := missingFields(row, []string{"type", "value"}); len(missing) > 0 {
				rec.diagnose(SeverityWarning, len(rec.Rows),
					"missing required field(s): "+strings.Join(missing, ", "), missing...)
				continue
			}
			valid++
		}
		rec.Confidence = Confidence(valid, len(rec.Rows))
	case len(attrRows) > 0:
		rec.Rows = attrRows
		rec.diagnose(SeverityInfo, 0, fmt.Sprintf(
			"no known export shape matched; elements passed through with confidence capped at %d", passThroughCap))
		rec.Confidence = passThroughCap
	case len(leaves) > 0:
		rec.Rows = []Row{leaves}
		rec.diagnose(SeverityInfo, 0, fmt.Sprintf(
			"no known export shape matched; element text passed through with confidence capped at %d", passThroughCap))
		rec.Confidence = passThroughCap
	default:
		rec.diagnose(SeverityWarning, 0, "no data elements found")
	}
}

func isHealthRecord(t xml.StartElement) bool {
	if t.Name.Local != "Record" {
		return false
	}
	_, hasType := attr(t, "type")
	return hasType
}

func healthRecordRow(t xml.StartElement) Row {
	var row Row
	if v, ok := attr(t, "type"); ok {
		for _, prefix := range healthKitPrefixes {
			v = strings.TrimPrefix(v, prefix)
		}
		row.Set("type", v)
	}
	for _, pair := range [][2]string{
		{"value", "value"},
		{"unit", "unit"},
		{"startDate", "start_date"},
		{"endDate", "end_date"},
		{"sourceName", "source"},
	} {
		if v, ok := attr(t, pair[0]); ok && v != "" {
			row.Set(pair[1], coerce(v))
		}
	}
	return row
}

func attributeRow(cat *Category, t xml.StartElement) Row {
	names := make([]string, len(t.Attr))
	for i, a := range t.Attr {
		names[i] = a.Name.Local
	}
	keys := cat.KeyHeaders(names)

	row := Row{{Key: "element", Value: t.Name.Local}}
	for i, a := range t.Attr {
		row.Set(keys[i], coerce(a.Value))
	}
	return row
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (p Markup) parseHTML(ctx context.Context, rec *Record, cat *Category, text []byte) {
	doc, err := html.Parse(bytes.NewReader(text))
	if err != nil {
		rec.diagnose(SeverityError, 0, "malformed markup: "+err.Error())
		return
	}

	if table := findFirst(doc, atom.Table); table != nil {
		if rows := tableRows(table); len(rows) > 0 {
			fillRows(ctx, rec, cat, rows[0], rows[1:], p.MaxRows)
			return
		}
	}

	var buf strings.Builder
	collectText(doc, &buf)
	parseText(ctx, rec, cat, buf.String(), p.MaxRows)
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// tableRows returns the cell text of every row in table, skipping nested tables.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
						var buf strings.Builder
						collectText(cell, &buf)
						cells = append(cells, strings.Join(strings.Fields(buf.String()), " "))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
			case atom.Table:
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

func collectText(n *html.Node, buf *strings.Builder) {
	switch {
	case n.Type == html.TextNode:
		buf.WriteString(n.Data)
	case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
	if n.Type == html.ElementNode && blockElements[n.DataAtom] {
		buf.WriteByte('\n')
	}
}
