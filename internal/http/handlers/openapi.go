package handlers

import (
	_ "embed"
	"fmt"
	"net/http"
)

// OpenAPIPath is where the API description is served; the docs page loads it
// from there.
const OpenAPIPath = "/v1/openapi.json"

//go:embed openapi.json
var openAPIDocument []byte

var docsPage = []byte(fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Expression Panel API</title></head>
<body style="margin:0"><redoc spec-url=%q></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
</body>
</html>`, OpenAPIPath))

func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(openAPIDocument)
}

// OpenAPIDocs renders the description with Redoc.
func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(docsPage)
}
