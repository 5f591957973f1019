package notify

import "text/template"

// batchTemplate renders one subscriber's matched-document digest.
var batchTemplate = template.Must(template.New("batch").Parse(`Subject: {{len .Matches}} new Further Information request(s) matching your subscription

Hi {{.Subscriber.Name}},

The following planning documents matched your subscribed report type(s) ({{range $i, $t := .ReportTypes}}{{if $i}}, {{end}}{{$t}}{{end}}):

{{range .Matches}}---
Project: {{.Project.PlanningTitle}} ({{.ProjectID}})
Stage: {{.Project.PlanningStage}}
County: {{.Project.PlanningCounty}}
Sector: {{.Project.PlanningSector}}
File: {{.FileName}}
Report type: {{.FIType}}
Quote: "{{.ValidationQuote}}"
View: {{.DeepLink}}

{{end}}
This is an automated notification from the planning document scanner.
`))

// progressTemplate renders an operator mid-run progress update.
var progressTemplate = template.Must(template.New("progress").Parse(`Subject: [{{.JobName}}] scan progress: {{.Processed}}/{{.Total}}

Job {{.JobName}} has processed {{.Processed}} of {{.Total}} documents so far, with {{.MatchesFound}} match(es) found.

{{if .RecentMatches}}Recent matches:
{{range .RecentMatches}}- {{.FileName}} ({{.FIType}}, project {{.ProjectID}})
{{end}}{{end}}
`))

// summaryTemplate renders the end-of-run operator summary.
var summaryTemplate = template.Must(template.New("summary").Parse(`Subject: [{{.JobName}}] scan complete: {{.MatchesFound}} match(es)

Job {{.JobName}} finished in {{.Duration}}.

Processed: {{.Processed}}/{{.Total}}
Matches found: {{.MatchesFound}}
{{if .Err}}
Run ended with error: {{.Err}}
{{end}}
{{range .Matches}}- {{.FileName}} ({{.FIType}}, project {{.ProjectID}})
{{end}}
`))
