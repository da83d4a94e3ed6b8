package email

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/jwalitptl/clinic-core/internal/model"
)

type tmpl struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) tmpl {
	return tmpl{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=zero").Parse(body)),
	}
}

var templates = map[string]tmpl{
	model.TemplateAppointmentConfirmed: mustTemplate(model.TemplateAppointmentConfirmed,
		`Appointment confirmed at {{.clinic_name}}`,
		`Hello{{with .patient_name}} {{.}}{{end}},

Your appointment at {{.clinic_name}} is confirmed for {{.start_time}} to {{.end_time}} ({{.timezone}}).

Reference: {{.appointment_id}}
`),
	model.TemplateAppointmentRescheduled: mustTemplate(model.TemplateAppointmentRescheduled,
		`Appointment moved at {{.clinic_name}}`,
		`Hello{{with .patient_name}} {{.}}{{end}},

Your appointment at {{.clinic_name}} now takes place on {{.start_time}} to {{.end_time}} ({{.timezone}}).

Reference: {{.appointment_id}}
`),
	model.TemplateAppointmentCancelled: mustTemplate(model.TemplateAppointmentCancelled,
		`Appointment cancelled at {{.clinic_name}}`,
		`Hello{{with .patient_name}} {{.}}{{end}},

Your appointment at {{.clinic_name}} on {{.start_time}} has been cancelled.

Reference: {{.appointment_id}}
`),
	model.TemplatePatientInvite: mustTemplate(model.TemplatePatientInvite,
		`Welcome to your clinic`,
		`Hello{{with .patient_name}} {{.}}{{end}},

Your clinic has registered you as a patient. You can now book and manage appointments online.
`),
}

// Render produces the subject and plain-text body of a notification
func Render(msg model.NotificationMessage) (string, string, error) {
	t, ok := templates[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", msg.Template)
	}
	vars := msg.Vars
	if vars == nil {
		vars = map[string]interface{}{}
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, vars); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := t.body.Execute(&body, vars); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
