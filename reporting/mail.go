package reporting

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"github.com/netresearch/zrunner/core"
)

// MailConfig configuration for the mail report
type MailConfig struct {
	SMTPHost          string `mapstructure:"smtp-host"`
	SMTPPort          int    `mapstructure:"smtp-port" default:"25" validate:"omitempty,min=1,max=65535"`
	SMTPUser          string `mapstructure:"smtp-user" json:"-"`
	SMTPPassword      string `mapstructure:"smtp-password" json:"-"`
	SMTPTLSSkipVerify bool   `mapstructure:"smtp-tls-skip-verify"`
	EmailTo           string `mapstructure:"email-to" validate:"required_with=SMTPHost"`
	EmailFrom         string `mapstructure:"email-from" validate:"required_with=SMTPHost"`
	EmailSubject      string `mapstructure:"email-subject"`
	MailOnlyOnError   bool   `mapstructure:"mail-only-on-error"`
}

// MailSink delivers the summary of a run by e-mail, with the JSON report
// attached.
type MailSink struct {
	MailConfig
	subjectTemplate *template.Template
}

// NewMailSink returns nil when no SMTP host is configured.
func NewMailSink(c *MailConfig) (*MailSink, error) {
	if c == nil || c.SMTPHost == "" {
		return nil, nil
	}

	m := &MailSink{MailConfig: *c, subjectTemplate: mailSubjectTemplate}
	if c.EmailSubject != "" {
		tmpl, err := template.New("custom-mail-subject").Funcs(templateFuncs).Parse(c.EmailSubject)
		if err != nil {
			return nil, fmt.Errorf("parse email subject: %w", err)
		}
		m.subjectTemplate = tmpl
	}

	return m, nil
}

func (m *MailSink) Report(res *core.RunResult) error {
	if m.MailOnlyOnError && !res.HadFailure() {
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from())
	msg.SetHeader("To", strings.Split(m.EmailTo, ",")...)
	msg.SetHeader("Subject", m.subject(res))
	msg.SetBody("text/html", m.body(res))

	msg.Attach(fmt.Sprintf("zrunner_%s.json", res.RunID), mail.SetCopyFunc(func(w io.Writer) error {
		js, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json attachment: %w", err)
		}
		if _, err := w.Write(js); err != nil {
			return fmt.Errorf("write json attachment: %w", err)
		}
		return nil
	}))

	d := mail.NewDialer(m.SMTPHost, m.SMTPPort, m.SMTPUser, m.SMTPPassword)
	// When TLSConfig.InsecureSkipVerify is true, mail server certificate authority is not validated
	if m.SMTPTLSSkipVerify {
		// #nosec G402 -- Allow explicit opt-in for development/legacy servers via config.
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("dial and send mail: %w", err)
	}
	return nil
}

func (m *MailSink) from() string {
	if !strings.Contains(m.EmailFrom, "%") {
		return m.EmailFrom
	}

	hostname, _ := os.Hostname()
	return fmt.Sprintf(m.EmailFrom, hostname)
}

func (m *MailSink) subject(res *core.RunResult) string {
	buf := bytes.NewBuffer(nil)
	_ = m.subjectTemplate.Execute(buf, res)

	return buf.String()
}

func (m *MailSink) body(res *core.RunResult) string {
	buf := bytes.NewBuffer(nil)
	_ = mailBodyTemplate.Execute(buf, res)

	return buf.String()
}

var (
	templateFuncs = template.FuncMap{
		"verdict":  verdict,
		"status":   statusLabel,
		"duration": formatDuration,
		"summary":  SummaryLine,
	}

	mailBodyTemplate = template.Must(template.New("mail-body").Funcs(templateFuncs).Parse(`
		<p>Run <b>{{.RunID}}</b> of <code>{{.Root}}</code> <b>{{verdict .}}</b>.</p>
		<p>{{summary .}}</p>
		{{- if .HadFailure}}
		<ul>
		{{- range .Records}}{{if .Outcome.IsFailure}}
			<li><b>{{status .Outcome.Status}}</b> {{.Kind}} <code>{{.ID}}</code>: {{.Outcome.Message}}</li>
		{{- end}}{{end}}
		</ul>
		{{- end}}
	`))

	mailSubjectTemplate = template.Must(template.New("mail-subject").Funcs(templateFuncs).Parse(
		"[zrunner {{verdict .}}] {{.Summary.Total}} tests in {{duration .Duration}}",
	))
)

func verdict(res *core.RunResult) string {
	if res.HadFailure() {
		return "failed"
	}
	return "passed"
}
