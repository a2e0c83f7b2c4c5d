package pipeline

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

var pdfEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// PDFOptions shape the file written by BuildPDF.
type PDFOptions struct {
	// Compress stores the content stream with FlateDecode.
	Compress bool
	// Hex writes text as hex strings instead of literals.
	Hex bool
	// Pad grows the content stream with whitespace up to this many bytes.
	Pad int
}

// BuildPDF lays text out as a single-page PDF with a classic xref table,
// one text line per source line.
func BuildPDF(text string, opts PDFOptions) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 11 Tf 50 780 Td 14 TL\n")
	for _, line := range strings.Split(text, "\n") {
		if opts.Hex {
			fmt.Fprintf(&content, "<%X> Tj T*\n", line)
			continue
		}
		fmt.Fprintf(&content, "(%s) Tj T*\n", pdfEscaper.Replace(line))
	}
	content.WriteString("ET\n")
	if opts.Pad > content.Len() {
		content.Write(bytes.Repeat([]byte{' '}, opts.Pad-content.Len()))
	}

	stream, filter := content.Bytes(), ""
	if opts.Compress {
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		_, _ = zw.Write(stream)
		_ = zw.Close()
		stream, filter = compressed.Bytes(), " /Filter /FlateDecode"
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d%s >>\nstream\n%s\nendstream", len(stream), filter, stream),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects))
	for i, obj := range objects {
		offsets = append(offsets, out.Len())
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return out.Bytes()
}
