package web

import "embed"

// Templates embeds the dashboard page templates.
//
//go:embed templates/*.html
var Templates embed.FS

// DashboardTemplate is the default page the snapshot is inlined into.
const DashboardTemplate = "templates/dashboard.html"
