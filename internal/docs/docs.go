// Package docs registers the OpenAPI document served at /openapi.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/diagnose": {
            "post": {
                "description": "Runs the subject gate, health gate, disease ensemble, severity classifier and treatment advisor on one leaf photo.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Diagnosis"],
                "summary": "Diagnose a leaf image",
                "parameters": [
                    {"type": "file", "description": "Leaf image (field name file or image)", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/diagnosis.Result"}},
                    "400": {"description": "Missing or invalid image", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "502": {"description": "Model inference failed", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/api/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "List recent diagnoses",
                "parameters": [
                    {"type": "integer", "description": "Maximum records (1-200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/storage.DiagnosisRecord"}}}
                }
            }
        },
        "/api/system": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Host and model server status",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Service identity",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        }
    },
    "definitions": {
        "diagnosis.Result": {
            "type": "object",
            "properties": {
                "leafType": {"type": "string", "enum": ["target_species", "not_target_species"]},
                "message": {"type": "string"},
                "isHealthy": {"type": "boolean"},
                "method": {"type": "string", "enum": ["model-based", "region-analysis"]},
                "disease": {"type": "string"},
                "accuracy": {"type": "number"},
                "severity": {"type": "string", "enum": ["Mild", "Moderate", "Severe"]},
                "treatment": {"type": "string"}
            }
        },
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "storage.DiagnosisRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "outcome": {"type": "string"},
                "leafType": {"type": "string"},
                "isHealthy": {"type": "boolean"},
                "method": {"type": "string"},
                "disease": {"type": "string"},
                "accuracy": {"type": "number"},
                "severity": {"type": "string"},
                "filename": {"type": "string"},
                "durationMs": {"type": "integer"},
                "result": {"type": "object"},
                "createdAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Leaf Diagnosis API",
	Description:      "Tea leaf disease diagnosis pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
