package server

import (
	"html/template"
	"net/http"
	"sort"
)

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"percent": func(v float64) float64 { return v * 100 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Stereo Jobs</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
th { background: #f0f0f0; }
.state-completed { color: #080; }
.state-failed { color: #c00; }
.state-running { color: #06c; }
</style>
</head>
<body>
<h1>Stereo Jobs</h1>
{{if .Jobs}}
<table>
<tr><th>ID</th><th>State</th><th>Left</th><th>Max disp</th><th>Valid</th><th>Mean disp</th><th>Artifacts</th></tr>
{{range .Jobs}}
<tr>
<td><a href="/api/v1/jobs/{{.ID}}/status">{{.ID}}</a></td>
<td class="state-{{.State}}">{{.State}}{{if .Stage}} ({{.Stage}}){{end}}</td>
<td>{{.Config.LeftPath}}</td>
<td>{{.Config.MaxDisparity}}</td>
<td>{{printf "%.1f%%" (percent .ValidRatio)}}</td>
<td>{{printf "%.2f" .MeanDisparity}}</td>
<td>
{{if eq .State "completed"}}
<a href="/api/v1/jobs/{{.ID}}/disparity.png">disparity</a>
<a href="/api/v1/jobs/{{.ID}}/mask.png">mask</a>
{{end}}
</td>
</tr>
{{end}}
</table>
{{else}}
<p>No jobs yet. POST to /api/v1/jobs to start one.</p>
{{end}}
</body>
</html>
`))

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	jobs := s.jobManager.ListJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, map[string]interface{}{"Jobs": jobs}); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
