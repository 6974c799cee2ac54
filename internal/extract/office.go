package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	openDocumentContent = "content.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	wordText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	odfPara   = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfSpan   = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfHead   = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)

	// The main part may be declared with its attributes in either order.
	docxPartFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	docxTypeFirst = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

func openZip(kind string, content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%s: not a zip: %w", kind, err)
	}
	return zr, nil
}

// readEntry returns the named zip entry, or nil when it is absent.
func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// collect joins the trimmed first submatch of every pattern, pattern by pattern.
func collect(b *strings.Builder, xml string, patterns ...*regexp.Regexp) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(xml, -1) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(m[1]))
		}
	}
}

// extractDOCX reads every <w:t> run of the main document part. Paragraph
// attributes are ignored so real-world documents with rsid markup still yield text.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip("docx", content)
	if err != nil {
		return "", err
	}
	body := docxDefaultBodyPath
	if types, _ := readEntry(zr, contentTypesPath); types != nil {
		for _, re := range []*regexp.Regexp{docxPartFirst, docxTypeFirst} {
			if m := re.FindSubmatch(types); m != nil {
				body = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	xml, err := readEntry(zr, body)
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("docx: %s not found", body)
	}
	var b strings.Builder
	collect(&b, string(xml), wordText)
	return strings.TrimSpace(b.String()), nil
}

// extractPPTX reads the <a:t> runs of every slide in slide-number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip("pptx", content)
	if err != nil {
		return "", err
	}
	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})
	var b strings.Builder
	for _, f := range slides {
		xml, err := readEntry(zr, f.Name)
		if err != nil {
			return "", fmt.Errorf("pptx: %w", err)
		}
		collect(&b, string(xml), slideText)
	}
	return strings.TrimSpace(b.String()), nil
}

func slideNumber(name string) int {
	n := 0
	for _, r := range strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePrefix), ".xml") {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// extractOpenDocument reads the text elements of an OpenDocument package's content.xml.
func extractOpenDocument(kind string, content []byte, patterns ...*regexp.Regexp) (string, error) {
	zr, err := openZip(kind, content)
	if err != nil {
		return "", err
	}
	xml, err := readEntry(zr, openDocumentContent)
	if err != nil {
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	if xml == nil {
		return "", fmt.Errorf("%s: %s not found", kind, openDocumentContent)
	}
	var b strings.Builder
	collect(&b, string(xml), patterns...)
	return strings.TrimSpace(b.String()), nil
}

func extractODP(content []byte) (string, error) {
	return extractOpenDocument("odp", content, odfPara, odfSpan, odfHead)
}

func extractODS(content []byte) (string, error) {
	return extractOpenDocument("ods", content, odfPara, odfSpan)
}

// extractWithCat handles .odt and .rtf, whose markup is plain enough for lu4p/cat.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("cat: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// extractExcel writes one tab-separated line per row, sheet by sheet.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("rows of sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}
