package formatter

import (
	"bytes"
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/unidoc/unioffice/common/license"
	"github.com/unidoc/unioffice/document"
)

const (
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFileExtension = ".docx"
)

// ActivateDOCX registers the unioffice key. unioffice refuses to write
// documents until this succeeds.
func ActivateDOCX(key, customer string) error {
	if key == "" {
		return fmt.Errorf("%w: unioffice key is empty", entity.ErrConfiguration)
	}

	var err error
	if customer != "" {
		err = license.SetLicenseKey(key, customer)
	} else {
		err = license.SetMeteredKey(key)
	}
	if err != nil {
		return fmt.Errorf("%w: activate unioffice: %w", entity.ErrConfiguration, err)
	}
	return nil
}

type DOCXFormatter struct{}

func NewDOCXFormatter() *DOCXFormatter {
	return &DOCXFormatter{}
}

func (mf *DOCXFormatter) Format(t *Transcript) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	title := doc.AddParagraph()
	title.SetStyle("Heading1")
	title.AddRun().AddText(t.title())

	doc.AddParagraph().AddRun().AddText(t.subtitle())

	for _, m := range t.Messages {
		heading := doc.AddParagraph().AddRun()
		heading.Properties().SetBold(true)
		heading.AddText(messageHeading(m))

		doc.AddParagraph().AddRun().AddText(m.Text)

		if s := sources(m); s != "" {
			run := doc.AddParagraph().AddRun()
			run.Properties().SetItalic(true)
			run.AddText(s)
		}
	}

	if lines := applicationLines(t.Application); len(lines) > 0 {
		heading := doc.AddParagraph()
		heading.SetStyle("Heading2")
		heading.AddRun().AddText("Application")
		for _, l := range lines {
			doc.AddParagraph().AddRun().AddText(l)
		}
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (mf *DOCXFormatter) ContentType() string {
	return docxContentType
}

func (mf *DOCXFormatter) FileExtension() string {
	return docxFileExtension
}
