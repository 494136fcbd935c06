package web

import (
	"html/template"
	"time"
)

const indexTemplate = `{{define "index"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>oasis node</title>
</head>
<body>
<h1>oasis node</h1>
<p class="health {{.Health}}">{{.Health}}: {{.Description}}</p>
<table>
<tr><th>Height</th><td>{{.Status.Height}}</td></tr>
<tr><th>App hash</th><td><code>{{.Status.AppHash}}</code></td></tr>
<tr><th>Last commit</th><td>{{stamp .Status.LastCommit}}</td></tr>
<tr><th>Restored from</th><td>{{.Status.RestoredFrom}}</td></tr>
</table>
<h2>Recent events</h2>
<ul id="events">
{{range .Events}}<li>{{.Height}} {{.Kind}} {{.Caller}}</li>
{{else}}<li>none</li>
{{end}}</ul>
<h2>Log</h2>
<ul id="logs">
{{range .Logs}}<li>{{stamp .Timestamp}} [{{.Level}}] {{.Text}}</li>
{{end}}</ul>
<p><a href="/docs/">Operator manual</a></p>
</body>
</html>{{end}}`

const docTemplate = `{{define "doc"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>oasis manual{{with .Name}}: {{.}}{{end}}</title>
</head>
<body>
<nav><a href="/">dashboard</a>{{range .Names}} | <a href="/docs/{{.}}">{{.}}</a>{{end}}</nav>
<article>
{{.Body}}
</article>
</body>
</html>{{end}}`

// parseTemplates parses the dashboard templates compiled into the binary.
func parseTemplates() (*template.Template, error) {
	return template.New("web").Funcs(template.FuncMap{
		"stamp": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return t.Format("2006-01-02 15:04:05")
		},
	}).Parse(indexTemplate + docTemplate)
}
