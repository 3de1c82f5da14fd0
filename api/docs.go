//go:build swagger
// +build swagger

package api

import (
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// SwaggerInfo describes the position API for gin-swagger
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Stablecoin Core API",
	Description:      "Collateralized positions, health factors and protocol config",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

func (s *Server) registerDocs() {
	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "basePath": "{{.BasePath}}",
  "schemes": {{ marshal .Schemes }},
  "securityDefinitions": {
    "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
  },
  "paths": {
    "/health": {
      "get": {
        "tags": ["System"],
        "summary": "Liveness check",
        "produces": ["application/json"],
        "responses": {"200": {"description": "Service is up"}}
      }
    },
    "/api/v1/config/initialize": {
      "post": {
        "tags": ["Config"],
        "summary": "Create the protocol config with the caller as authority",
        "security": [{"BearerAuth": []}],
        "produces": ["application/json"],
        "responses": {
          "201": {"description": "Config created", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/ConfigView"}}}]}},
          "409": {"description": "Already initialized", "schema": {"$ref": "#/definitions/Problem"}}
        }
      }
    },
    "/api/v1/config": {
      "get": {
        "tags": ["Config"],
        "summary": "Current protocol config",
        "security": [{"BearerAuth": []}],
        "produces": ["application/json"],
        "responses": {
          "200": {"description": "Config", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/ConfigView"}}}]}},
          "412": {"description": "Not initialized", "schema": {"$ref": "#/definitions/Problem"}}
        }
      },
      "put": {
        "tags": ["Config"],
        "summary": "Change the minimum health factor (authority only)",
        "security": [{"BearerAuth": []}],
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [
          {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/UpdateConfigRequest"}}
        ],
        "responses": {
          "200": {"description": "Updated config", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/ConfigView"}}}]}},
          "403": {"description": "Caller is not the authority", "schema": {"$ref": "#/definitions/Problem"}}
        }
      }
    },
    "/api/v1/positions/deposit": {
      "post": {
        "tags": ["Positions"],
        "summary": "Deposit collateral and mint debt tokens",
        "security": [{"BearerAuth": []}],
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [
          {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/DepositRequest"}}
        ],
        "responses": {
          "200": {"description": "Resulting position", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/HealthView"}}}]}},
          "422": {"description": "Health factor too low or arithmetic bounds", "schema": {"$ref": "#/definitions/Problem"}}
        }
      }
    },
    "/api/v1/positions/redeem": {
      "post": {
        "tags": ["Positions"],
        "summary": "Withdraw collateral and burn debt tokens",
        "security": [{"BearerAuth": []}],
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [
          {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/RedeemRequest"}}
        ],
        "responses": {
          "200": {"description": "Resulting position", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/HealthView"}}}]}},
          "404": {"description": "No position", "schema": {"$ref": "#/definitions/Problem"}}
        }
      }
    },
    "/api/v1/positions/me": {
      "get": {
        "tags": ["Positions"],
        "summary": "Caller's position",
        "security": [{"BearerAuth": []}],
        "produces": ["application/json"],
        "responses": {
          "200": {"description": "Position", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/PositionView"}}}]}},
          "404": {"description": "No position", "schema": {"$ref": "#/definitions/Problem"}}
        }
      }
    },
    "/api/v1/positions/me/health": {
      "get": {
        "tags": ["Positions"],
        "summary": "Caller's health factor and mint capacity",
        "security": [{"BearerAuth": []}],
        "produces": ["application/json"],
        "responses": {
          "200": {"description": "Health", "schema": {"allOf": [{"$ref": "#/definitions/StandardResponse"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/HealthView"}}}]}},
          "503": {"description": "Price quote is stale", "schema": {"$ref": "#/definitions/Problem"}}
        }
      }
    }
  },
  "definitions": {
    "Amount": {
      "type": "object",
      "properties": {
        "units": {"type": "string"},
        "display": {"type": "string"}
      }
    },
    "DepositRequest": {
      "type": "object",
      "properties": {
        "collateral_amount": {"type": "string", "example": "1000000000"},
        "mint_amount": {"type": "string", "example": "500000000"}
      }
    },
    "RedeemRequest": {
      "type": "object",
      "properties": {
        "collateral_amount": {"type": "string"},
        "burn_amount": {"type": "string"}
      }
    },
    "UpdateConfigRequest": {
      "type": "object",
      "required": ["min_health_factor"],
      "properties": {
        "min_health_factor": {"type": "integer", "minimum": 1}
      }
    },
    "ConfigView": {
      "type": "object",
      "properties": {
        "authority": {"type": "string"},
        "mint": {"type": "string"},
        "liquidation_threshold": {"type": "integer"},
        "liquidation_bonus": {"type": "integer"},
        "min_health_factor": {"type": "integer"}
      }
    },
    "PositionView": {
      "type": "object",
      "properties": {
        "owner": {"type": "string"},
        "collateral_value": {"$ref": "#/definitions/Amount"},
        "amount_minted": {"$ref": "#/definitions/Amount"},
        "custody_account": {"type": "string"},
        "token_account": {"type": "string"},
        "updated_at": {"type": "string"}
      }
    },
    "HealthView": {
      "type": "object",
      "properties": {
        "position": {"$ref": "#/definitions/PositionView"},
        "health_factor": {"type": "string"},
        "unbounded": {"type": "boolean"},
        "min_health_factor": {"type": "integer"},
        "mint_capacity": {"$ref": "#/definitions/Amount"}
      }
    },
    "StandardResponse": {
      "type": "object",
      "properties": {
        "success": {"type": "boolean"},
        "data": {"type": "object"},
        "message": {"type": "string"},
        "timestamp": {"type": "string"},
        "trace_id": {"type": "string"}
      }
    },
    "Problem": {
      "type": "object",
      "properties": {
        "type": {"type": "string"},
        "title": {"type": "string"},
        "status": {"type": "integer"},
        "detail": {"type": "string"},
        "instance": {"type": "string"},
        "kind": {"type": "string"},
        "trace_id": {"type": "string"}
      }
    }
  }
}`
