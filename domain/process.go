package domain

type PID int

type PIDStatus string

// Component names the part of the system a tracked process belongs to.
type Component string

const (
	SERVER Component = "server"
	VIEWER Component = "viewer"
)

type Process struct {
	PID       PID
	Component Component
}
