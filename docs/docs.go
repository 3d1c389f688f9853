// Package docs holds the OpenAPI document served under /swagger/. It keeps
// the swag layout so http-swagger can load it; update it together with the
// handler annotations.
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
        "/jobs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs, newest first",
                "parameters": [
                    {"type": "integer", "description": "max jobs to return", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.listJobsResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            },
            "post": {
                "description": "Creates the job (status init) and hands it to the pipeline. Returns without waiting.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Submit a blog generation job",
                "parameters": [
                    {
                        "description": "idea and tone (priority: 0=low,1=normal,2=high)",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.submitJobDTO"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httptransport.submitJobResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/cleanup": {
            "post": {
                "description": "type=all removes every job older than the age threshold; type=status only completed, failed and abandoned in-progress ones. dry_run (required) reports without deleting and returns service.Preview instead.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Delete stale jobs",
                "parameters": [
                    {
                        "description": "strategy and mode",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.cleanupDTO"}
                    }
                ],
                "responses": {
                    "200": {"description": "real run; a dry run returns service.Preview", "schema": {"$ref": "#/definitions/service.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "description": "Returns the stored job record, including result or failure fields once terminal.",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Poll a job",
                "parameters": [
                    {"type": "string", "description": "tracking id (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.Job"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            },
            "delete": {
                "description": "Removes the record in any state. A running pipeline stops at its next check.",
                "tags": ["jobs"],
                "summary": "Delete a job record",
                "parameters": [
                    {"type": "string", "description": "tracking id (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/{id}/result": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get the generated post",
                "parameters": [
                    {"type": "string", "description": "tracking id (uuid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.jobResultResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        }
    },
    "definitions": {
        "entity.Job": {
            "type": "object",
            "properties": {
                "tracking_id": {"type": "string"},
                "idea": {"type": "string"},
                "tone": {"type": "string"},
                "priority": {"type": "integer"},
                "status": {"type": "string", "enum": ["init", "in_progress", "completed", "failed"]},
                "progress": {"type": "integer"},
                "message": {"type": "string"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "word_count": {"type": "integer"},
                "images": {"type": "array", "items": {"type": "string"}},
                "rating": {"$ref": "#/definitions/entity.Rating"},
                "error": {"type": "string"},
                "error_type": {"type": "string"},
                "timestamp": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "entity.Rating": {
            "type": "object",
            "properties": {
                "score": {"type": "number"},
                "review": {"type": "string"}
            }
        },
        "httptransport.apiError": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "field": {"type": "string"}
            }
        },
        "httptransport.cleanupDTO": {
            "type": "object",
            "required": ["dry_run"],
            "properties": {
                "type": {"type": "string", "enum": ["all", "status"], "example": "status"},
                "dry_run": {"type": "boolean"}
            }
        },
        "httptransport.jobResultResp": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "word_count": {"type": "integer"},
                "images": {"type": "array", "items": {"type": "string"}},
                "rating": {"$ref": "#/definitions/entity.Rating"}
            }
        },
        "httptransport.listJobsResp": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "jobs": {"type": "array", "items": {"$ref": "#/definitions/entity.Job"}}
            }
        },
        "httptransport.submitJobDTO": {
            "type": "object",
            "properties": {
                "idea": {"type": "string", "example": "AI in healthcare"},
                "tone": {"type": "string", "example": "Professional"},
                "priority": {"type": "integer"}
            }
        },
        "httptransport.submitJobResp": {
            "type": "object",
            "properties": {
                "tracking_id": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "service.Candidate": {
            "type": "object",
            "properties": {
                "tracking_id": {"type": "string"},
                "status": {"type": "string", "enum": ["init", "in_progress", "completed", "failed"]},
                "updated_at": {"type": "string"},
                "age": {"type": "string"}
            }
        },
        "service.Preview": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["all", "status"]},
                "max_age": {"type": "string"},
                "would_delete": {"type": "array", "items": {"$ref": "#/definitions/service.Candidate"}},
                "stats": {"$ref": "#/definitions/service.Stats"}
            }
        },
        "service.Result": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["all", "status"]},
                "max_age": {"type": "string"},
                "deleted": {"type": "integer"},
                "deleted_jobs": {"type": "array", "items": {"$ref": "#/definitions/service.Candidate"}},
                "failed": {"type": "integer"},
                "stats_before": {"$ref": "#/definitions/service.Stats"},
                "stats_after": {"$ref": "#/definitions/service.Stats"}
            }
        },
        "service.Stats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "old": {"type": "integer"},
                "by_status": {"type": "object", "additionalProperties": {"type": "integer"}},
                "old_by_status": {"type": "object", "additionalProperties": {"type": "integer"}}
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
	Title:            "Blog Job Service API",
	Description:      "Submit blog generation jobs, poll their progress and clean up old records.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
