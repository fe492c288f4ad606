package postgres

import (
	"strings"
	"testing"

	"reacher-incidents/models"
)

func TestPrefixedQualifiesEveryColumn(t *testing.T) {
	got := prefixed("i.", "id, project_id,\n\tnumber")
	if got != "i.id, i.project_id, i.number" {
		t.Fatalf("unexpected %q", got)
	}
	for _, col := range strings.Split(prefixed("i.", incidentColumns), ", ") {
		if !strings.HasPrefix(col, "i.") || strings.ContainsAny(col, " \n\t") {
			t.Errorf("badly qualified column %q", col)
		}
	}
}

func TestOwnerLockKeyIsStablePerOwner(t *testing.T) {
	a := models.OwnerRef{Kind: models.OwnerIncident, ID: "1"}
	b := models.OwnerRef{Kind: models.OwnerAlert, ID: "1"}
	if ownerLockKey(a) != ownerLockKey(a) {
		t.Fatal("lock key must be deterministic")
	}
	if ownerLockKey(a) == ownerLockKey(b) {
		t.Fatal("owners of different kinds must not share a lock key")
	}
}

func TestSchemaDeclaresEveryTable(t *testing.T) {
	for _, table := range []string{"states", "severities", "monitors", "incidents", "alerts",
		"scheduled_maintenance", "timeline_entries", "on_call_policies", "escalation_rules",
		"execution_logs", "metric_points", "project_counters"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema is missing table %s", table)
		}
	}
}

func TestOwnerTablesCoverEveryKind(t *testing.T) {
	for _, kind := range []models.OwnerKind{models.OwnerMonitor, models.OwnerIncident, models.OwnerAlert, models.OwnerScheduledMaintenance} {
		table, ok := ownerTables[kind]
		if !ok {
			t.Errorf("no table for owner kind %s", kind)
			continue
		}
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("owner table %s is not in the schema", table)
		}
	}
}
