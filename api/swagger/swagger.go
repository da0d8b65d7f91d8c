package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Call Scheduling API",
        "description": "Class session scheduling with push and email notification fan-out",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Calls", "description": "Scheduled class sessions"},
        {"name": "ReportCards", "description": "Teacher ratings of students"},
        {"name": "Notifications", "description": "In-app notifications and delivery preferences"},
        {"name": "Realtime", "description": "Live push socket"}
    ],
    "paths": {
        "/calls": {
            "post": {
                "tags": ["Calls"],
                "summary": "Schedule a class session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleCallRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}": {
            "get": {
                "tags": ["Calls"],
                "summary": "Get a scheduled call",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}/window": {
            "get": {
                "tags": ["Calls"],
                "summary": "Report whether a call can be joined or is in progress right now",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}/reschedule": {
            "patch": {
                "tags": ["Calls"],
                "summary": "Move a call to a new date and time",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleCallRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Call is cancelled or completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}/cancel": {
            "post": {
                "tags": ["Calls"],
                "summary": "Cancel a call",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CancelCallRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Call is cancelled or completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}/complete": {
            "post": {
                "tags": ["Calls"],
                "summary": "Mark a call as completed",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Call is cancelled or completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/report-cards": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Submit a report card and notify administrators",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitReportCardRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's notifications, newest first",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}/read": {
            "patch": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notification-preferences": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Get the caller's notification preference, with defaults applied",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Notifications"],
                "summary": "Replace the caller's notification preference",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateNotificationPreferenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Open the caller's live notification socket",
                "parameters": [{"name": "access_token", "in": "query", "type": "string"}],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScheduleCallRequest": {
            "type": "object",
            "properties": {
                "lessonId": {"type": "string"},
                "batchId": {"type": "string"},
                "courseId": {"type": "string"},
                "teacherId": {"type": "string"},
                "date": {"type": "string", "example": "2026-03-02"},
                "startTime": {"type": "string", "example": "10:00"},
                "endTime": {"type": "string", "example": "11:00"},
                "timezone": {"type": "string", "example": "Asia/Jakarta"},
                "type": {"type": "string"},
                "joinLink": {"type": "string"},
                "callDuration": {"type": "integer"}
            },
            "required": ["lessonId", "batchId", "date", "startTime", "endTime", "timezone"]
        },
        "RescheduleCallRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"}
            },
            "required": ["date", "startTime", "endTime"]
        },
        "CancelCallRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "SubmitReportCardRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "teacherId": {"type": "string"},
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "comments": {"type": "string"},
                "date": {"type": "string", "example": "2026-03-02"}
            },
            "required": ["studentId", "rating"]
        },
        "UpdateNotificationPreferenceRequest": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "methods": {"type": "array", "items": {"type": "string", "enum": ["email", "push"]}},
                "timings": {"type": "array", "items": {"type": "string", "enum": ["1day", "1hour", "30min", "10min"]}}
            },
            "required": ["enabled"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
