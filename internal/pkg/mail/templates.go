package mail

import (
	"bytes"
	"html/template"
	"time"
)

// View models rendered into HTML mail bodies. Rendering is a pure
// presentation concern kept out of the sync and billing cores.

// SyncSummaryView feeds the post-run summary mail.
type SyncSummaryView struct {
	RunID    string
	Status   string
	Found    int
	Inserted int
	Updated  int
	Errors   []string
	Duration time.Duration
	RunAt    time.Time
}

// PostFailureAlertView feeds the social-post failure alert mail.
type PostFailureAlertView struct {
	PostID   string
	Text     string
	Failures map[string]string
}

// BillingAlertView feeds billing processing alerts.
type BillingAlertView struct {
	EventID   string
	EventType string
	Error     string
}

var syncSummaryTmpl = template.Must(template.New("sync_summary").Parse(`
<h2>Synchronisation BOAMP — {{.Status}}</h2>
<p>Run <code>{{.RunID}}</code> du {{.RunAt.Format "02/01/2006 15:04"}} ({{.Duration}})</p>
<ul>
  <li>Annonces trouvées : {{.Found}}</li>
  <li>Créées : {{.Inserted}}</li>
  <li>Mises à jour : {{.Updated}}</li>
</ul>
{{if .Errors}}
<h3>Erreurs ({{len .Errors}})</h3>
<ul>
{{range .Errors}}  <li>{{.}}</li>
{{end}}</ul>
{{end}}
`))

var postFailureTmpl = template.Must(template.New("post_failure").Parse(`
<h2>Échec de publication sociale</h2>
<p>Publication <code>{{.PostID}}</code></p>
<blockquote>{{.Text}}</blockquote>
<ul>
{{range $platform, $err := .Failures}}  <li><strong>{{$platform}}</strong> : {{$err}}</li>
{{end}}</ul>
`))

var billingAlertTmpl = template.Must(template.New("billing_alert").Parse(`
<h2>Erreur de traitement billing</h2>
<p>Événement <code>{{.EventID}}</code> ({{.EventType}})</p>
<p>{{.Error}}</p>
`))

// RenderSyncSummary renders the sync summary mail body.
func RenderSyncSummary(view SyncSummaryView) (string, error) {
	return render(syncSummaryTmpl, view)
}

// RenderPostFailureAlert renders the social-post failure alert body.
func RenderPostFailureAlert(view PostFailureAlertView) (string, error) {
	return render(postFailureTmpl, view)
}

// RenderBillingAlert renders the billing alert body.
func RenderBillingAlert(view BillingAlertView) (string, error) {
	return render(billingAlertTmpl, view)
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
