package formatter

import (
	"bytes"
	"fmt"
)

const (
	markdownContentType   = "text/markdown; charset=utf-8"
	markdownFileExtension = ".md"
)

type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (mf *MarkdownFormatter) Format(t *Transcript) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n_%s_\n", t.title(), t.subtitle())

	for _, m := range t.Messages {
		fmt.Fprintf(&buf, "\n**%s**\n\n%s\n", messageHeading(m), m.Text)
		if s := sources(m); s != "" {
			fmt.Fprintf(&buf, "\n> %s\n", s)
		}
	}

	if lines := applicationLines(t.Application); len(lines) > 0 {
		buf.WriteString("\n## Application\n\n")
		for _, l := range lines {
			fmt.Fprintf(&buf, "- %s\n", l)
		}
	}

	return buf.Bytes(), nil
}

func (mf *MarkdownFormatter) ContentType() string {
	return markdownContentType
}

func (mf *MarkdownFormatter) FileExtension() string {
	return markdownFileExtension
}
