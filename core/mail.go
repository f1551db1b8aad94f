package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"log"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"
)

type (
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text body; wins over templated text content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// TemplateContext is what every email template executes against.
	TemplateContext struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// executableTemplate is satisfied by both text and html templates.
	executableTemplate interface {
		Execute(wr io.Writer, data interface{}) error
	}
)

var (
	templates map[string]map[string]executableTemplate // {name: {ext: template}}
	tmplInit  sync.Once
)

// Render fills TextContent and HTMLContent from BodyStr or the named
// template pair. Missing templates are not an error; the message just stays
// without that content.
func (m *EmailMessage) Render() error {
	if m.TemplateName != "" {
		tmplInit.Do(parseTemplates) // only parse once, on first send
	}

	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	} else if m.TemplateName != "" {
		txt, err := m.render(".txt")
		if err != nil {
			return err
		}
		m.TextContent = txt
	}

	if m.TemplateName != "" {
		html, err := m.render(".gohtml")
		if err != nil {
			return err
		}
		m.HTMLContent = html
	}
	return nil
}

func (m *EmailMessage) render(ext string) (string, error) {
	set, ok := templates[m.TemplateName]
	if !ok {
		return "", nil
	}
	tmpl, ok := set[ext]
	if !ok {
		return "", nil
	}

	var buff bytes.Buffer
	tctx := TemplateContext{FrontendBaseURL: Conf.FrontendBaseURL, Data: m.TemplateData}
	if err := tmpl.Execute(&buff, tctx); err != nil {
		return "", err
	}
	return buff.String(), nil
}

// Attach base64-encodes the reader's content and appends it as an
// attachment. The content type is sniffed when not given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	_ = encoder.Close()

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// parseTemplates loads every name.{txt,gohtml} pair under
// assets/templates/email, each wrapped in its _base template. Files starting
// with "_" are bases, not standalone templates.
func parseTemplates() {
	templates = make(map[string]map[string]executableTemplate)

	root := filepath.Join(Conf.WorkDir, "assets", "templates", "email")
	paths, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		log.Print(fmt.Errorf("core.parseTemplates: %v", err))
	}

	for _, path := range paths {
		fname := filepath.Base(path)
		ext := filepath.Ext(fname)
		if strings.HasPrefix(fname, "_") || (ext != ".txt" && ext != ".gohtml") {
			continue
		}

		var tmpl executableTemplate
		if ext == ".txt" {
			t, err := texttmpl.ParseFiles(filepath.Join(root, "_base.txt"), path)
			if err != nil {
				log.Print(fmt.Errorf("core.parseTemplates: %v", err))
				continue
			}
			if Conf.Debug || Conf.TestMode {
				t = t.Option("missingkey=error")
			}
			tmpl = t
		} else {
			t, err := htmltmpl.ParseFiles(filepath.Join(root, "_base.gohtml"), path)
			if err != nil {
				log.Print(fmt.Errorf("core.parseTemplates: %v", err))
				continue
			}
			if Conf.Debug || Conf.TestMode {
				t = t.Option("missingkey=error")
			}
			tmpl = t
		}

		name := strings.TrimSuffix(fname, ext)
		if templates[name] == nil {
			templates[name] = make(map[string]executableTemplate)
		}
		templates[name][ext] = tmpl
	}
}
