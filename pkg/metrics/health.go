package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of the simulation process
type HealthStatus struct {
	Status       string            `json:"status"` // "healthy", "unhealthy"
	Timestamp    time.Time         `json:"timestamp"`
	Participants map[string]string `json:"participants,omitempty"`
	Message      string            `json:"message,omitempty"`
	Version      string            `json:"version,omitempty"`
	Uptime       string            `json:"uptime,omitempty"`
	StartTime    time.Time         `json:"-"`
}

var (
	healthChecker = &HealthChecker{
		participants: make(map[string]ParticipantHealth),
		startTime:    time.Now(),
	}
)

// ParticipantHealth tracks the state of a single participant goroutine
type ParticipantHealth struct {
	Name    string
	Running bool
	Message string
	Updated time.Time
}

// HealthChecker tracks which participants are running
type HealthChecker struct {
	mu           sync.RWMutex
	participants map[string]ParticipantHealth
	startTime    time.Time
	version      string
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterParticipant records a participant and its running state
func RegisterParticipant(name string, running bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.participants[name] = ParticipantHealth{
		Name:    name,
		Running: running,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateParticipant updates the state of a participant
func UpdateParticipant(name string, running bool, message string) {
	RegisterParticipant(name, running, message) // Same implementation
}

// GetHealth returns the overall process health. The process is healthy
// while every registered participant is either running or finished
// without an error message.
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "healthy"
	participants := make(map[string]string)

	for name, p := range healthChecker.participants {
		switch {
		case p.Running:
			participants[name] = "running"
		case p.Message == "":
			participants[name] = "finished"
		default:
			status = "unhealthy"
			participants[name] = "failed: " + p.Message
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		Participants: participants,
		Version:      healthChecker.version,
		Uptime:       uptime.String(),
		StartTime:    healthChecker.startTime,
	}
}

// GetReadiness reports whether the pipeline is fully assembled: all
// five singleton roles must have registered and be running.
func GetReadiness() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "ready"
	message := ""
	participants := make(map[string]string)

	criticalRoles := []string{"analyzer", "dataMngr", "recSys", "agntPoolMngr", "policyEval"}

	for _, name := range criticalRoles {
		if p, exists := healthChecker.participants[name]; exists {
			if !p.Running {
				status = "not_ready"
				message = "waiting for " + name
				participants[name] = "not running"
			} else {
				participants[name] = "ready"
			}
		} else {
			// Participant not registered yet
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			participants[name] = "not registered"
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		Participants: participants,
		Message:      message,
		Version:      healthChecker.version,
		Uptime:       uptime.String(),
		StartTime:    healthChecker.startTime,
	}
}

// HealthHandler returns an HTTP handler for the /health endpoint
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(readiness)
	}
}

// LivenessHandler returns a simple liveness check (always returns 200 if process is running)
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}
