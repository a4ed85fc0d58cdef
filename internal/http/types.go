package http

import "github.com/fyrsmithlabs/gridwalker/internal/audit"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// CommandRequest is the request body for POST /api/v1/commands.
type CommandRequest struct {
	Instruction string `json:"instruction"`
}

// CommandResponse is the response body for instruction endpoints.
type CommandResponse struct {
	Results      []string `json:"results"`
	Lost         bool     `json:"lost,omitempty"`
	InvocationID string   `json:"invocation_id,omitempty"`
}

// RobotResponse is the response body for GET /api/v1/robot.
type RobotResponse struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Heading string `json:"heading"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// InvocationsResponse is the response body for GET /api/v1/invocations.
type InvocationsResponse struct {
	Invocations []audit.Invocation `json:"invocations"`
}
