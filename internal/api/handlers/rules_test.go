package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/models"
)

func testRulesHandler(t *testing.T) (*RulesHandler, *models.Database) {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRulesHandler(db, logger), db
}

const validRuleJSON = `{
	"LibraryID": "1",
	"Name": "old movies",
	"Enabled": true,
	"Logic": "AND",
	"Conditions": [
		{"field": "movie.lastPlayedDays", "operator": ">", "number": 90}
	],
	"DelayedActions": [
		{"type": "DELETE_VIA_RADARR", "delay_days": 7}
	]
}`

func TestCreateRule(t *testing.T) {
	handler, db := testRulesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rules", strings.NewReader(validRuleJSON))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Rule
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == 0 {
		t.Errorf("Expected assigned rule ID")
	}

	stored, err := db.GetRule(created.ID)
	if err != nil {
		t.Fatalf("Expected rule in store: %v", err)
	}
	if stored.Name != "old movies" {
		t.Errorf("Expected stored name, got %q", stored.Name)
	}
}

func TestCreateRuleValidationFailure(t *testing.T) {
	handler, _ := testRulesHandler(t)

	invalid := `{"LibraryID": "1", "Name": "bad", "Logic": "AND", "Conditions": [
		{"field": "movie.bitrate", "operator": ">", "number": 1}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/rules", strings.NewReader(invalid))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body["field"] != "conditions[0].field" {
		t.Errorf("Expected field pointer in error, got %q", body["field"])
	}
}

func TestGetRuleNotFound(t *testing.T) {
	handler, _ := testRulesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rules/99", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestDeleteRule(t *testing.T) {
	handler, db := testRulesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rules", strings.NewReader(validRuleJSON))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var created models.Rule
	json.NewDecoder(rec.Body).Decode(&created)

	req = httptest.NewRequest(http.MethodDelete, "/api/rules/1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if _, err := db.GetRule(created.ID); err == nil {
		t.Errorf("Expected rule to be deleted")
	}
}
