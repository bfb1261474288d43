// Package notify renders the scheduler emails and provides the queue-backed
// email sender.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"meterjob/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Template names one of the scheduler emails.
type Template string

const (
	TemplateMissing Template = "missing"
	TemplateSuccess Template = "success"
	TemplateFailure Template = "failure"
)

var subjectPrefixes = map[Template]string{
	TemplateMissing: "Scheduler Missed",
	TemplateSuccess: "Scheduler Succeeded",
	TemplateFailure: "Scheduler Failed",
}

const dateLayout = "2006-01-02 15:04 MST"

// Data is what the templates render. Build it with DataFor.
type Data struct {
	Subject          string
	ScheduleName     string
	SubscriptionID   string
	SubscriptionName string
	PlanID           string
	Dimension        string
	Frequency        string
	Status           string
	RequestJSON      string
	ResponseJSON     string
	UsageDate        string
	DueAt            string
	RunBy            string
}

// DataFor fills template data from a schedule and the audit record written
// for it.
func DataFor(task types.ScheduledTask, record types.MeteredAuditLog) Data {
	d := Data{
		ScheduleName:     task.Name,
		SubscriptionID:   task.SubscriptionID,
		SubscriptionName: task.SubscriptionName,
		PlanID:           task.PlanID,
		Dimension:        task.Dimension,
		Frequency:        string(task.Frequency),
		Status:           record.StatusCode,
		RequestJSON:      record.RequestJSON,
		ResponseJSON:     record.ResponseJSON,
		UsageDate:        formatDate(record.SubscriptionUsageDate),
		DueAt:            formatDate(task.Anchor()),
		RunBy:            record.RunBy,
	}
	if d.RunBy == "" {
		d.RunBy = task.RunBy()
	}
	return d
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// Renderer renders the embedded scheduler templates into email messages.
type Renderer struct {
	html map[Template]*template.Template
	text map[Template]*texttemplate.Template
	from types.EmailAddress
}

// NewRenderer parses the embedded templates. It fails if any template is
// missing or malformed.
func NewRenderer(from types.EmailAddress) (*Renderer, error) {
	r := &Renderer{
		html: make(map[Template]*template.Template),
		text: make(map[Template]*texttemplate.Template),
		from: from,
	}

	baseHTML, err := templateFS.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read base.html: %w", err)
	}

	for _, name := range []Template{TemplateMissing, TemplateSuccess, TemplateFailure} {
		htmlContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.html", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.html: %w", name, err)
		}
		htmlTmpl, err := template.New("base").Parse(string(baseHTML))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse base.html: %w", err)
		}
		if _, err := htmlTmpl.Parse(string(htmlContent)); err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
		}
		r.html[name] = htmlTmpl

		txtContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.txt", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.txt: %w", name, err)
		}
		txtTmpl, err := texttemplate.New(string(name)).Parse(string(txtContent))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
		}
		r.text[name] = txtTmpl
	}

	return r, nil
}

// Render produces the message for name addressed to recipients.
func (r *Renderer) Render(name Template, data Data, recipients []string) (types.EmailMessage, error) {
	htmlTmpl, ok := r.html[name]
	if !ok {
		return types.EmailMessage{}, fmt.Errorf("renderer: no HTML template %q", name)
	}
	txtTmpl := r.text[name]

	data.Subject = fmt.Sprintf("%s: %s", subjectPrefixes[name], data.ScheduleName)

	var htmlBuf, txtBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return types.EmailMessage{}, fmt.Errorf("renderer: failed to render HTML for %q: %w", name, err)
	}
	if err := txtTmpl.Execute(&txtBuf, data); err != nil {
		return types.EmailMessage{}, fmt.Errorf("renderer: failed to render text for %q: %w", name, err)
	}

	return types.EmailMessage{
		From:     r.from,
		To:       recipients,
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}
