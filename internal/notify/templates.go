package notify

import htmltemplate "html/template"

var layout = htmltemplate.Must(htmltemplate.New("layout").Parse(`<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.5; color:#333;">
    <div style="max-width:600px; margin:0 auto; padding:20px;">
      {{template "content" .}}
      <hr style="border:none; border-top:1px solid #eee; margin:20px 0;">
      <p style="color:#999; font-size:12px;">This is an automated message from the practice.</p>
    </div>
  </body>
</html>`))

func init() {
	register(KindBookingConfirmed,
		`Your {{.ServiceType}} appointment is booked`,
		`Hi {{.Name}},

Your {{.ServiceType}} appointment is booked for {{.When}} ({{.Mode}}).
{{if .Location}}Location: {{.Location}}
{{end}}
Manage your appointments: {{.Link}}
`,
		`<h2>You're booked</h2>
<p>Hi {{.Name}},</p>
<p>Your {{.ServiceType}} appointment is booked for <strong>{{.When}}</strong> ({{.Mode}}).</p>
{{if .Location}}<p>Location: {{.Location}}</p>{{end}}
<p><a href="{{.Link}}">Manage your appointments</a></p>`)

	register(KindBookingCancelled,
		`Your appointment on {{.When}} was cancelled`,
		`Hi {{.Name}},

Your {{.ServiceType}} appointment on {{.When}} has been cancelled.
{{if .Reason}}Reason: {{.Reason}}
{{end}}
Book a new time: {{.Link}}
`,
		`<h2>Appointment cancelled</h2>
<p>Hi {{.Name}},</p>
<p>Your {{.ServiceType}} appointment on <strong>{{.When}}</strong> has been cancelled.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p><a href="{{.Link}}">Book a new time</a></p>`)

	register(KindAppointmentReminder,
		`Reminder: appointment on {{.When}}`,
		`Hi {{.Name}},

This is a reminder of your {{.ServiceType}} appointment on {{.When}} ({{.Mode}}).
{{if .Location}}Location: {{.Location}}
{{end}}
Need to change it? {{.Link}}
`,
		`<h2>Appointment reminder</h2>
<p>Hi {{.Name}},</p>
<p>This is a reminder of your {{.ServiceType}} appointment on <strong>{{.When}}</strong> ({{.Mode}}).</p>
{{if .Location}}<p>Location: {{.Location}}</p>{{end}}
<p><a href="{{.Link}}">Reschedule or cancel</a></p>`)

	register(KindNoShowFollowUp,
		`We missed you`,
		`Hi {{.Name}},

We missed you at your appointment on {{.When}}. If you'd like to book another time, you can do so here:

{{.Link}}
`,
		`<h2>We missed you</h2>
<p>Hi {{.Name}},</p>
<p>We missed you at your appointment on {{.When}}.</p>
<p><a href="{{.Link}}">Book another time</a></p>`)

	register(KindNewsletterConfirm,
		`Please confirm your subscription`,
		`Hi{{if .Name}} {{.Name}}{{end}},

Please confirm your newsletter subscription by opening this link:

{{.Link}}

If you didn't sign up, ignore this email.
`,
		`<h2>Confirm your subscription</h2>
<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p><a href="{{.Link}}">Confirm subscription</a></p>
<p style="color:#555; font-size:12px;">If you didn't sign up, ignore this email.</p>`)

	register(KindContactReceived,
		`New {{.Topic}} enquiry from {{.Name}}`,
		`From: {{.Name}} <{{.Email}}>{{if .Phone}} ({{.Phone}}){{end}}
Topic: {{.Topic}}

{{.Body}}
`,
		`<h2>New {{.Topic}} enquiry</h2>
<p>From: {{.Name}} &lt;{{.Email}}&gt;{{if .Phone}} ({{.Phone}}){{end}}</p>
<pre style="white-space:pre-wrap;">{{.Body}}</pre>`)

	register(KindEnrollmentActive,
		`You're enrolled in {{.CourseTitle}}`,
		`Hi {{.Name}},

You're enrolled in {{.CourseTitle}}. Start learning here:

{{.Link}}
`,
		`<h2>Welcome to {{.CourseTitle}}</h2>
<p>Hi {{.Name}},</p>
<p><a href="{{.Link}}">Start the course</a></p>`)

	register(KindBookingConflict,
		`Calendly booking overlaps the calendar: {{.When}}`,
		`{{.Name}} <{{.Email}}> booked {{.ServiceType}} on {{.When}} through Calendly,
but the slot overlaps an existing appointment. It was not added.

Calendly event: {{.Link}}
`,
		`<h2>Calendly booking not added</h2>
<p>{{.Name}} &lt;{{.Email}}&gt; booked {{.ServiceType}} on <strong>{{.When}}</strong> through Calendly,
but the slot overlaps an existing appointment.</p>
<p>Calendly event: {{.Link}}</p>`)
}
