// Package docs holds the OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@example.com"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Show the status of server",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/api/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [{"description": "User registration info", "name": "user", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.AuthResult"}},
                    "400": {"description": "Validation failed or email/username already taken", "schema": {"$ref": "#/definitions/common.AppError"}},
                    "403": {"description": "Role cannot be self-assigned", "schema": {"$ref": "#/definitions/common.AppError"}},
                    "429": {"description": "Too many authentication attempts", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in a user",
                "parameters": [{"description": "User login credentials", "name": "credentials", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.AuthResult"}},
                    "401": {"description": "Invalid credentials or deactivated account", "schema": {"$ref": "#/definitions/common.AppError"}},
                    "429": {"description": "Too many authentication attempts", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/auth/refresh-token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Rotate the token pair",
                "parameters": [{"description": "Refresh token", "name": "token", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RefreshTokenRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.TokenPair"}},
                    "401": {"description": "Invalid or expired refresh token", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/auth/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PublicUser"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Update the current user's profile",
                "parameters": [{"description": "Fields to change", "name": "profile", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.UpdateProfileRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PublicUser"}},
                    "400": {"description": "Validation failed or email/username in use", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/auth/change-password": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Change the current user's password",
                "parameters": [{"description": "Current and new password", "name": "passwords", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.ChangePasswordRequest"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Validation failed or current password incorrect", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "List all users",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 10, "description": "Page size (max 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.UserPage"}},
                    "403": {"description": "Forbidden: Admin privileges required", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/users/{userId}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Delete a user",
                "parameters": [{"type": "string", "description": "User ID", "name": "userId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid ID or attempt to delete own account", "schema": {"$ref": "#/definitions/common.AppError"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/users/{userId}/role": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Update a user's role",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userId", "in": "path", "required": true},
                    {"description": "New role for the user", "name": "role", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.UpdateUserRoleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        },
        "/api/users/{userId}/status": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Activate or deactivate a user",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userId", "in": "path", "required": true},
                    {"description": "New status", "name": "status", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.UpdateUserStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/common.AppError"}}
                }
            }
        }
    },
    "definitions": {
        "common.AppError": {"type": "object", "properties": {"message": {"type": "string"}}},
        "model.RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "username"],
            "properties": {
                "username": {"type": "string", "maxLength": 30, "minLength": 3},
                "email": {"type": "string"},
                "password": {"type": "string", "maxLength": 72, "minLength": 6},
                "role": {"type": "string", "enum": ["student", "admin"]}
            }
        },
        "model.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "model.RefreshTokenRequest": {
            "type": "object",
            "required": ["refreshToken"],
            "properties": {"refreshToken": {"type": "string"}}
        },
        "model.UpdateProfileRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "email": {"type": "string"}}
        },
        "model.ChangePasswordRequest": {
            "type": "object",
            "required": ["currentPassword", "newPassword"],
            "properties": {"currentPassword": {"type": "string"}, "newPassword": {"type": "string", "maxLength": 72, "minLength": 6}}
        },
        "model.UpdateUserRoleRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {"role": {"type": "string", "enum": ["student", "admin"]}}
        },
        "model.UpdateUserStatusRequest": {
            "type": "object",
            "required": ["isActive"],
            "properties": {"isActive": {"type": "boolean"}}
        },
        "model.PublicUser": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "isActive": {"type": "boolean"},
                "isEmailVerified": {"type": "boolean"},
                "lastLogin": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.TokenPair": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"}
            }
        },
        "model.AuthResult": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/model.PublicUser"},
                "tokens": {"$ref": "#/definitions/model.TokenPair"}
            }
        },
        "model.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "pages": {"type": "integer"}
            }
        },
        "model.UserPage": {
            "type": "object",
            "properties": {
                "users": {"type": "array", "items": {"$ref": "#/definitions/model.PublicUser"}},
                "pagination": {"$ref": "#/definitions/model.Pagination"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Go-Auth API",
	Description:      "Authentication and user management API with JWT access and refresh tokens.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
