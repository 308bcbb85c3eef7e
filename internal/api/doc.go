// Package api defines wire-format types, converters and the project service
// behind the HTTP API. It translates internal project and workflow models
// into transport-friendly DTOs so clients never couple to store types.
//
// # Key Types
//
// ProjectService: upload, create, list, describe and realtime-token
// operations. Every method takes the authenticated user id and enforces
// ownership.
//
// ProjectView: the project document plus derived transcription and
// generation phase status.
//
// DaemonStatus/WorkflowStatus: daemon running state and workflow summary.
//
// # Converters
//
// FromProject: project.Project -> ProjectView.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// FromEstimate: estimate.Estimate -> EstimateView with formatted range.
//
// # Errors
//
// HTTPStatus maps the services error taxonomy onto response codes, and
// ErrorResponse is the JSON error body.
package api
