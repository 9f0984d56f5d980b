package postgresql

import "github.com/dukex/herald/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{Version: 1, Name: "create_workflows_tenants_overrides", SQL: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				environment_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				trigger_identifier VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT false,
				steps JSONB NOT NULL DEFAULT '[]',
				payload_schema JSONB,
				validate_payload BOOLEAN NOT NULL DEFAULT false,
				payload_defaults JSONB,
				reserved_variables JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (environment_id, trigger_identifier)
			);

			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);

			CREATE TABLE tenants (
				id UUID PRIMARY KEY,
				environment_id VARCHAR(255) NOT NULL,
				identifier VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (environment_id, identifier)
			);

			CREATE TABLE workflow_overrides (
				id UUID PRIMARY KEY,
				environment_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				tenant_identifier VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL,
				preference_settings JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (environment_id, workflow_id, tenant_identifier)
			);
		`},
		{Version: 2, Name: "create_request_traces", SQL: `
			CREATE TABLE request_traces (
				id UUID PRIMARY KEY,
				request_id VARCHAR(255) NOT NULL,
				transaction_id VARCHAR(255),
				organization_id VARCHAR(255),
				environment_id VARCHAR(255),
				user_id VARCHAR(255),
				event_type VARCHAR(100) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('success', 'error')),
				message TEXT,
				raw_data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_request_traces_request_id ON request_traces(request_id);
			CREATE INDEX idx_request_traces_transaction_id ON request_traces(transaction_id);
			CREATE INDEX idx_request_traces_created_at ON request_traces(created_at);
		`},
	}
}
