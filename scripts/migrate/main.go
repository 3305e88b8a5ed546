// Command migrate applies the database schema. It is idempotent and safe to
// re-run against an existing database.
package main

import (
	"flag"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/synapsedt/synapsedt-api/pkg/config"
	"github.com/synapsedt/synapsedt-api/pkg/database"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		lob TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT,
		user_agent TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		old_values JSONB,
		new_values JSONB,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS test_cycles (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		quarter INT NOT NULL,
		year INT NOT NULL,
		status TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cycle_reports (
		id UUID PRIMARY KEY,
		cycle_id UUID NOT NULL REFERENCES test_cycles(id),
		report_name TEXT NOT NULL,
		regulatory_ref TEXT NOT NULL,
		lob TEXT NOT NULL,
		tester_id UUID,
		owner_id UUID,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workflow_phases (
		id UUID PRIMARY KEY,
		report_id UUID NOT NULL REFERENCES cycle_reports(id),
		name TEXT NOT NULL,
		sequence INT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (report_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		id UUID PRIMARY KEY,
		phase_id UUID NOT NULL REFERENCES workflow_phases(id),
		version_number INT NOT NULL,
		status TEXT NOT NULL,
		parent_version_id UUID,
		submitted_by UUID,
		submitted_at TIMESTAMPTZ,
		approved_by UUID,
		approved_at TIMESTAMPTZ,
		rejection_reason TEXT,
		total_data_sources INT NOT NULL DEFAULT 0,
		approved_data_sources INT NOT NULL DEFAULT 0,
		total_attributes INT NOT NULL DEFAULT 0,
		approved_attributes INT NOT NULL DEFAULT 0,
		total_mappings INT NOT NULL DEFAULT 0,
		approved_mappings INT NOT NULL DEFAULT 0,
		total_samples INT NOT NULL DEFAULT 0,
		approved_samples INT NOT NULL DEFAULT 0,
		primary_key_count INT NOT NULL DEFAULT 0,
		mandatory_count INT NOT NULL DEFAULT 0,
		cde_count INT NOT NULL DEFAULT 0,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (phase_id, version_number)
	)`,
	// At most one open draft per phase.
	`CREATE UNIQUE INDEX IF NOT EXISTS versions_one_draft_per_phase
		ON versions (phase_id) WHERE status = 'DRAFT'`,
	`CREATE TABLE IF NOT EXISTS version_items (
		id UUID PRIMARY KEY,
		version_id UUID NOT NULL REFERENCES versions(id),
		phase_id UUID NOT NULL,
		item_type TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		data_type TEXT,
		line_item_number TEXT,
		source_ref TEXT,
		sample_category TEXT,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		is_mandatory BOOLEAN NOT NULL DEFAULT FALSE,
		is_cde BOOLEAN NOT NULL DEFAULT FALSE,
		info_security TEXT,
		risk_level TEXT,
		criticality TEXT,
		llm_confidence DOUBLE PRECISION,
		llm_rationale TEXT,
		tester_decision TEXT,
		tester_notes TEXT,
		tester_decided_by UUID,
		tester_decided_at TIMESTAMPTZ,
		owner_decision TEXT,
		owner_notes TEXT,
		owner_decided_by UUID,
		owner_decided_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		auto_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS version_items_unique_name
		ON version_items (version_id, item_type, LOWER(name))`,
	`CREATE INDEX IF NOT EXISTS version_items_by_version
		ON version_items (version_id, item_type)`,
	`CREATE TABLE IF NOT EXISTS export_jobs (
		id UUID PRIMARY KEY,
		params JSONB NOT NULL,
		status TEXT NOT NULL,
		progress INT NOT NULL DEFAULT 0,
		result_url TEXT,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		error_message TEXT
	)`,
}

func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "print statements without executing")
	flag.Parse()

	if dryRun {
		for _, stmt := range statements {
			log.Println(stmt)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	if err := apply(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("schema applied, %d statements", len(statements))
}

func apply(db *sqlx.DB) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
