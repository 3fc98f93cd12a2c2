package html

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.Stylesheet}}">
</head>
<body>
<h1>{{.Title}}</h1>
<div class="summary">Number of subjects: <strong>{{.SubjectCount}}</strong></div>
{{if .Description}}<div class="description">{{markdown .Description}}</div>{{end}}

<nav>
<ul>
{{range .Sections}}<li><a href="#{{anchor .Name}}">{{.Name}}</a>{{if .Warnings}} ({{.Warnings.NbWarnings}} warnings){{end}}</li>
{{end}}</ul>
</nav>

{{range .Sections}}
<section id="{{anchor .Name}}">
<h2>{{.Name}}</h2>
{{with .Warnings}}
<div class="warnings">
<h3>Warnings: {{.NbWarnings}}</h3>
{{$flagged := .Flagged}}
{{range .Columns}}{{$names := index $flagged .}}{{if $names}}
<p><strong>{{.}}</strong>: {{range $i, $n := $names}}{{if $i}}, {{end}}{{$n}}{{end}}</p>
{{end}}{{end}}
</div>
{{end}}
{{with .Population}}{{template "table" .}}{{end}}
{{with .Summary}}{{template "table" .}}{{end}}
{{if .Subjects}}
<div class="subjects">
{{range .Subjects}}
<figure>
<img src="{{.Screenshot}}" alt="{{.Name}}" loading="lazy">
<figcaption>{{.Name}}</figcaption>
{{with .Stats}}{{template "table" .}}{{end}}
</figure>
{{end}}
</div>
{{end}}
</section>
{{end}}

{{if .Plots}}
<section id="plots">
<h2>Charts</h2>
{{range .Plots}}<div class="plot" title="{{.Title}} - {{.Column}}">{{svg .SVG}}</div>
{{end}}
</section>
{{end}}
</body>
</html>

{{define "table"}}
<table>
<thead><tr><th>{{.Index}}</th>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}{{$flags := .Flagged}}<tr><th>{{.Label}}</th>{{range $i, $c := .Cells}}<td{{if index $flags $i}} class="flagged"{{end}}>{{$c}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{end}}
`

const stylesheet = `body { font-family: Arial, sans-serif; margin: 40px; }
h1 { color: #333; }
table { border-collapse: collapse; margin: 12px 0; }
th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: right; }
thead th { background-color: #f2f2f2; }
td.flagged { background-color: #f8d7da; color: #721c24; font-weight: bold; }
.warnings { border-left: 4px solid #e0a800; padding-left: 12px; }
.subjects { display: flex; flex-wrap: wrap; gap: 16px; }
figure { margin: 0; }
figure img { max-width: 100%; }
.plot svg { max-width: 100%; height: auto; }
`
