package server

import "html/template"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>BrightPath: Resume Report Generator with AI</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
fieldset { margin-bottom: 1rem; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ccc; padding: .4rem; text-align: left; vertical-align: top; }
.warning { background: #fff4d6; padding: .6rem; }
.error { background: #fde2e1; padding: .6rem; }
pre { white-space: pre-wrap; }
</style>
</head>
<body>
<h1>BrightPath: Resume Report Generator with AI</h1>

{{if .Warning}}<p class="warning">{{.Warning}}</p>{{end}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}

<form method="post" action="/analyze" enctype="multipart/form-data">
<fieldset>
<legend>Documents</legend>
<p><label>Upload the Role Information (PDF or text) <input type="file" name="role"></label></p>
<p><label>or a job posting URL <input type="url" name="role_url" value="{{.RoleURL}}"></label></p>
<p><label>Upload the Resume (PDF or text) <input type="file" name="resume"></label></p>
</fieldset>
<fieldset>
<legend>Attributes</legend>
{{range .Attributes}}<label><input type="checkbox" name="attribute" value="{{.Name}}"{{if .Checked}} checked{{end}}> {{.Name}}</label><br>
{{end}}</fieldset>
<fieldset>
<legend>Report</legend>
<label><input type="radio" name="mode" value="attributes"{{if ne .Mode "report"}} checked{{end}}> Attribute table</label>
<label><input type="radio" name="mode" value="report"{{if eq .Mode "report"}} checked{{end}}> Comprehensive report</label>
</fieldset>
<input type="hidden" name="submitted" value="1">
<button type="submit">Generate Report</button>
</form>

{{with .Result}}
<h2>Report</h2>
{{if .Rows}}
<table>
<tr><th>Attribute</th><th>Value</th></tr>
{{range .Rows}}<tr><td>{{.Label}}</td><td>{{.Text}}</td></tr>
{{end}}</table>
{{else}}
<pre>{{.Content}}</pre>
{{end}}
{{range .Warnings}}<p class="warning">{{.}}</p>{{end}}
<p>{{.DownloadLink}}</p>
{{if .Location}}<p>Uploaded to {{.Location}}</p>{{end}}
{{end}}
</body>
</html>
`))
