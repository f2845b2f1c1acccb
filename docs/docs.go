// Package docs registers the OpenAPI document served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Lowkey OSS",
            "url": "https://github.com/custodia-labs/lowkey/issues"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Backend status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.RootResponse"}}
                }
            }
        },
        "/api/chat": {
            "post": {
                "description": "Streams the answer as plain text, followed by grounding sources",
                "consumes": ["application/json"],
                "produces": ["text/plain"],
                "tags": ["Chat"],
                "summary": "Chat with Lowkey",
                "parameters": [
                    {
                        "description": "Conversation so far",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/domain.ChatRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "400": {"description": "Invalid request body", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Chat not configured", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/auth/token": {
            "post": {
                "description": "Exchange the admin key for a JWT",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "Issue API token",
                "parameters": [
                    {
                        "description": "Admin key",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/domain.TokenRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.TokenResponse"}},
                    "400": {"description": "Invalid request body", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "401": {"description": "Invalid admin key", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/harvest": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Enqueues a harvest of one city, or of every configured city when no city is given",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Harvest"],
                "summary": "Start a harvest",
                "parameters": [
                    {
                        "description": "Harvest scope",
                        "name": "request",
                        "in": "body",
                        "schema": {"$ref": "#/definitions/http.HarvestRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/domain.Task"}},
                    "400": {"description": "Invalid request or unknown city", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Harvest API disabled", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/harvest/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Harvest"],
                "summary": "Get harvest task",
                "parameters": [
                    {"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Task"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Pings the task queue, lock and archive backends",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/version": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Get API version",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VersionResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.ChatRequest": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.UIMessage"}}
            }
        },
        "domain.UIMessage": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "role": {"type": "string"},
                "parts": {"type": "array", "items": {"$ref": "#/definitions/domain.UIMessagePart"}}
            }
        },
        "domain.UIMessagePart": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "domain.TokenRequest": {
            "type": "object",
            "properties": {"key": {"type": "string"}}
        },
        "domain.TokenResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "domain.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string", "enum": ["harvest_city", "harvest_all"]},
                "payload": {"type": "object", "additionalProperties": {"type": "string"}},
                "status": {"type": "string", "enum": ["pending", "processing", "completed", "failed"]},
                "attempts": {"type": "integer"},
                "max_attempts": {"type": "integer"},
                "error": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "started_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "scheduled_for": {"type": "string"}
            }
        },
        "http.ErrorResponse": {
            "description": "API error response",
            "type": "object",
            "properties": {"error": {"type": "string", "example": "invalid request body"}}
        },
        "http.HarvestRequest": {
            "description": "Harvest request; an empty city harvests every configured city",
            "type": "object",
            "properties": {"city": {"type": "string", "example": "Paris"}}
        },
        "http.RootResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "Backend is running"},
                "brain": {"type": "string", "example": "Gemini"}
            }
        },
        "http.StatusResponse": {
            "description": "Simple status response",
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ok"}}
        },
        "http.VersionResponse": {
            "description": "API version response",
            "type": "object",
            "properties": {"version": {"type": "string", "example": "1.0.0"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT Bearer token. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Lowkey API",
	Description:      "Place-recommendation harvester and travel chat backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
