package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		participants: make(map[string]ParticipantHealth),
		startTime:    time.Now(),
	}
}

func TestRegisterParticipant(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("worker-5", true, "running")

	if len(healthChecker.participants) != 1 {
		t.Errorf("expected 1 participant, got %d", len(healthChecker.participants))
	}

	p := healthChecker.participants["worker-5"]
	if !p.Running {
		t.Error("participant should be running")
	}

	if p.Message != "running" {
		t.Errorf("expected message 'running', got '%s'", p.Message)
	}
}

func TestGetHealth_AllRunning(t *testing.T) {
	resetHealthChecker()
	healthChecker.version = "1.0.0"

	RegisterParticipant("dataMngr", true, "")
	RegisterParticipant("recSys", true, "")

	health := GetHealth()

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}

	if len(health.Participants) != 2 {
		t.Errorf("expected 2 participants, got %d", len(health.Participants))
	}

	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestGetHealth_FinishedIsHealthy(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("dataMngr", false, "")

	health := GetHealth()

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}

	if health.Participants["dataMngr"] != "finished" {
		t.Errorf("unexpected dataMngr state: %s", health.Participants["dataMngr"])
	}
}

func TestGetHealth_OneFailed(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("dataMngr", true, "")
	RegisterParticipant("worker-5", false, "protocol error")

	health := GetHealth()

	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}

	if health.Participants["worker-5"] != "failed: protocol error" {
		t.Errorf("unexpected worker-5 state: %s", health.Participants["worker-5"])
	}
}

func TestGetReadiness_AllReady(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("analyzer", true, "")
	RegisterParticipant("dataMngr", true, "")
	RegisterParticipant("recSys", true, "")
	RegisterParticipant("agntPoolMngr", true, "")
	RegisterParticipant("policyEval", true, "")

	readiness := GetReadiness()

	if readiness.Status != "ready" {
		t.Errorf("expected status 'ready', got '%s'", readiness.Status)
	}
}

func TestGetReadiness_MissingSingletonRole(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("analyzer", true, "")
	// remaining singleton roles not registered

	readiness := GetReadiness()

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}

	if readiness.Message == "" {
		t.Error("expected message explaining why not ready")
	}
}

func TestGetReadiness_SingletonRoleStopped(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("analyzer", true, "")
	RegisterParticipant("dataMngr", false, "stopped early")
	RegisterParticipant("recSys", true, "")
	RegisterParticipant("agntPoolMngr", true, "")
	RegisterParticipant("policyEval", true, "")

	readiness := GetReadiness()

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker()
	healthChecker.version = "test"

	RegisterParticipant("analyzer", true, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler := HealthHandler()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %s", health.Status)
	}

	if health.Version != "test" {
		t.Errorf("expected version 'test', got %s", health.Version)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterParticipant("worker-5", false, "stalled")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler := HealthHandler()
	handler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if health.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %s", health.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()

	handler := LivenessHandler()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}
