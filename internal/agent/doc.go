// Package agent exposes the chat-facing actions (transfer, balance lookup and
// contract analytics). Each action runs against its own chain registry
// session and reports either a success text with structured content or a
// failure text with an {"error": message} payload.
package agent
