package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>imaginify account sync: Swagger</title>
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

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "imaginify-account-sync", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "User": { "type": "object", "properties": {
        "_id": {"type":"string"}, "clerkId": {"type":"string"}, "email": {"type":"string"},
        "username": {"type":"string"}, "firstName": {"type":"string"}, "lastName": {"type":"string"},
        "photo": {"type":"string"}, "planId": {"type":"integer"}, "creditBalance": {"type":"integer"},
        "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"} } }
    }
  },
  "paths": {
    "/api/webhooks/clerk": {
      "post": {
        "summary": "Receive a signed user.created / user.updated / user.deleted delivery",
        "parameters": [
          {"name":"svix-id","in":"header","required":true,"schema":{"type":"string"}},
          {"name":"svix-timestamp","in":"header","required":true,"schema":{"type":"string"}},
          {"name":"svix-signature","in":"header","required":true,"schema":{"type":"string"}}
        ],
        "responses": {
          "200": { "description": "processed; {message, user} for user events" },
          "400": { "description": "missing headers, unparsable body, bad signature or invalid payload" },
          "404": { "description": "update for an unknown user" },
          "500": { "description": "secret not configured or storage failure" }
        }
      }
    },
    "/api/v1/users/me": {
      "get": { "summary": "Current user's record", "security": [{"bearer": []}], "responses": { "200": { "description": "user" }, "401": { "description": "unauthenticated" }, "404": { "description": "User not found" } } }
    },
    "/api/v1/users/{id}": {
      "get": { "summary": "User record by identity provider id (own record only)", "security": [{"bearer": []}],
        "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}],
        "responses": { "200": { "description": "user" }, "403": { "description": "not the caller's record" }, "404": { "description": "User not found" } } }
    },
    "/api/v1/users/{id}/credits": {
      "post": { "summary": "Add (or subtract) credits on the caller's record by local id", "security": [{"bearer": []}],
        "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"amount":{"type":"integer"}}}}}},
        "responses": { "200": { "description": "updated user" }, "400": { "description": "invalid request body" }, "404": { "description": "User credits update failed" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
