package container

import (
	"encoding/xml"
	"strings"
)

const (
	nsDC        = "http://purl.org/dc/elements/1.1/"
	nsPhotoshop = "http://ns.adobe.com/photoshop/1.0/"
	nsRDF       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	xmpAPP1Header = "http://ns.adobe.com/xap/1.0/\x00"
	xmpPNGKeyword = "XML:com.adobe.xmp"
)

// xmpFields is the subset of XMP this tool reads and writes.
type xmpFields struct {
	Title       string
	Description string
	Subject     []string
}

func (f xmpFields) empty() bool {
	return f.Title == "" && f.Description == "" && len(f.Subject) == 0
}

// parseXMP extracts dc:title, dc:description and dc:subject, falling back to
// photoshop:Headline for the title. Malformed packets yield what was read
// before the error.
func parseXMP(packet []byte) xmpFields {
	var f xmpFields
	dec := xml.NewDecoder(strings.NewReader(string(packet)))
	dec.Strict = false

	var stack []xml.Name
	var text strings.Builder
	var headline string

	within := func(space, local string) bool {
		for _, n := range stack {
			if n.Space == space && n.Local == local {
				return true
			}
		}
		return false
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			value := strings.TrimSpace(text.String())
			switch {
			case t.Name.Local == "li" && within(nsDC, "title"):
				if f.Title == "" {
					f.Title = value
				}
			case t.Name.Local == "li" && within(nsDC, "description"):
				if f.Description == "" {
					f.Description = value
				}
			case t.Name.Local == "li" && within(nsDC, "subject"):
				if value != "" {
					f.Subject = append(f.Subject, value)
				}
			case t.Name.Space == nsPhotoshop && t.Name.Local == "Headline":
				headline = value
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			text.Reset()
		}
	}
	if f.Title == "" {
		f.Title = headline
	}
	return f
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func xmpElements(f xmpFields) string {
	var b strings.Builder
	if f.Title != "" {
		t := xmlEscape(f.Title)
		b.WriteString("  <dc:title><rdf:Alt><rdf:li xml:lang=\"x-default\">" + t + "</rdf:li></rdf:Alt></dc:title>\n")
		b.WriteString("  <photoshop:Headline>" + t + "</photoshop:Headline>\n")
	}
	if f.Description != "" {
		b.WriteString("  <dc:description><rdf:Alt><rdf:li xml:lang=\"x-default\">" + xmlEscape(f.Description) + "</rdf:li></rdf:Alt></dc:description>\n")
	}
	if len(f.Subject) > 0 {
		b.WriteString("  <dc:subject><rdf:Bag>\n")
		for _, s := range f.Subject {
			b.WriteString("    <rdf:li>" + xmlEscape(s) + "</rdf:li>\n")
		}
		b.WriteString("  </rdf:Bag></dc:subject>\n")
	}
	return b.String()
}

// buildXMP writes a fresh packet.
func buildXMP(f xmpFields) string {
	var b strings.Builder
	b.WriteString("<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n")
	b.WriteString("<x:xmpmeta xmlns:x=\"adobe:ns:meta/\">\n")
	b.WriteString("<rdf:RDF xmlns:rdf=\"" + nsRDF + "\">\n")
	b.WriteString("<rdf:Description rdf:about=\"\"\n")
	b.WriteString("  xmlns:dc=\"" + nsDC + "\"\n")
	b.WriteString("  xmlns:photoshop=\"" + nsPhotoshop + "\">\n")
	b.WriteString(xmpElements(f))
	b.WriteString("</rdf:Description>\n")
	b.WriteString("</rdf:RDF>\n")
	b.WriteString("</x:xmpmeta>\n")
	b.WriteString("<?xpacket end=\"w\"?>")
	return b.String()
}

// injectXMP replaces or adds the given fields inside an existing packet and
// leaves every other property alone. A packet without an rdf:Description to
// attach to is replaced by a fresh one.
func injectXMP(packet string, f xmpFields) string {
	if f.empty() {
		return packet
	}
	result := packet

	const about = "rdf:about=\"\""
	if !strings.Contains(result, "xmlns:dc=") {
		if pos := strings.Index(result, about); pos >= 0 {
			at := pos + len(about)
			result = result[:at] + "\n  xmlns:dc=\"" + nsDC + "\"" + result[at:]
		}
	}
	if !strings.Contains(result, "xmlns:photoshop=") {
		if pos := strings.Index(result, about); pos >= 0 {
			at := pos + len(about)
			result = result[:at] + "\n  xmlns:photoshop=\"" + nsPhotoshop + "\"" + result[at:]
		}
	}

	if !strings.Contains(result, "</rdf:Description>") {
		start := strings.Index(result, "<rdf:Description")
		if start < 0 {
			return buildXMP(f)
		}
		closeAt := strings.Index(result[start:], "/>")
		end := strings.Index(result, "</rdf:RDF>")
		if closeAt < 0 || end < 0 {
			return buildXMP(f)
		}
		abs := start + closeAt
		result = result[:abs] + ">" + result[abs+2:]
		end = strings.Index(result, "</rdf:RDF>")
		result = result[:end] + "</rdf:Description>\n" + result[end:]
	}

	if f.Title != "" {
		result = removeElement(result, "dc:title")
		result = removeElement(result, "photoshop:Headline")
	}
	if f.Description != "" {
		result = removeElement(result, "dc:description")
	}
	if len(f.Subject) > 0 {
		result = removeElement(result, "dc:subject")
	}

	pos := strings.Index(result, "</rdf:Description>")
	return result[:pos] + xmpElements(f) + result[pos:]
}

func removeElement(xmlText, tag string) string {
	open := "<" + tag
	closing := "</" + tag + ">"
	from := 0
	for {
		rel := strings.Index(xmlText[from:], open)
		if rel < 0 {
			return xmlText
		}
		start := from + rel
		next := start + len(open)
		// "<dc:title" must not match "<dc:titleFoo"
		if next < len(xmlText) && !strings.ContainsRune(" >/\t\n\r", rune(xmlText[next])) {
			from = next
			continue
		}
		tagEnd := strings.IndexByte(xmlText[next:], '>')
		if tagEnd < 0 {
			return xmlText
		}
		end := next + tagEnd + 1
		if xmlText[end-2] != '/' {
			body := strings.Index(xmlText[end:], closing)
			if body < 0 {
				return xmlText
			}
			end += body + len(closing)
		}
		if end < len(xmlText) && xmlText[end] == '\n' {
			end++
		}
		// drop the indentation preceding the element
		lineStart := start
		for lineStart > 0 && (xmlText[lineStart-1] == ' ' || xmlText[lineStart-1] == '\t') {
			lineStart--
		}
		xmlText = xmlText[:lineStart] + xmlText[end:]
		from = lineStart
	}
}
