package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the case API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>cloudsign-api — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the case-management endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "cloudsign-api", "version": "v0.1.0" },
  "paths": {
    "/api/cases": {
      "post": {
        "summary": "Create a draft signing case",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"key":{"type":"string"},"title":{"type":"string"},"note":{"type":"string"},"flow":{"type":"string","enum":["standard","embedded_sms","simplified_auth"]}}}}}},
        "responses": { "201": { "description": "case created" } }
      }
    },
    "/api/cases/{id}": {
      "get": { "summary": "Get the local case record", "responses": { "200": { "description": "case" }, "404": { "description": "unknown case" } } },
      "patch": { "summary": "Update title/note while editable", "responses": { "200": { "description": "updated" }, "409": { "description": "no longer editable" } } }
    },
    "/api/cases/{id}/files": {
      "post": { "summary": "Upload and attach a contract file (multipart)", "responses": { "201": { "description": "file attached" } } }
    },
    "/api/cases/{id}/participants": {
      "post": { "summary": "Set the signer list for the case's flow", "responses": { "200": { "description": "participants set" }, "400": { "description": "invalid signer set" } } }
    },
    "/api/cases/{id}/send": {
      "post": { "summary": "Send a prepared case to its signers", "responses": { "200": { "description": "sent" }, "409": { "description": "wrong state" } } }
    },
    "/api/cases/send": {
      "post": { "summary": "Run a whole signing flow in one request (resumable by key)", "responses": { "200": { "description": "sent; embedded-SMS flows include consent references" } } }
    },
    "/api/cases/{id}/status": {
      "get": { "summary": "Poll remote status and reconcile the case", "responses": { "200": { "description": "reconciled case" } } }
    },
    "/api/cases/{id}/download": {
      "get": { "summary": "Download the signed contract PDF", "responses": { "200": { "description": "PDF bytes" } } }
    },
    "/api/webhooks/cloudsign": {
      "post": { "summary": "Signing service event callback (JWT-authenticated)", "responses": { "200": { "description": "event recorded" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
