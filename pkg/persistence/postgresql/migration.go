package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_definitions (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(64) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				is_system BOOLEAN NOT NULL DEFAULT false,
				priority INT NOT NULL DEFAULT 0,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_definitions_dispatch
				ON workflow_definitions(organization_id, trigger_type, priority)
				WHERE is_active;
		`,
		2: `
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL,
				target_type VARCHAR(32) NOT NULL DEFAULT '',
				target_id VARCHAR(255) NOT NULL DEFAULT '',
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX idx_workflow_executions_workflow_status ON workflow_executions(workflow_id, status);
			CREATE INDEX idx_workflow_executions_cooldown
				ON workflow_executions(workflow_id, target_type, target_id, completed_at DESC);
		`,
	}
}
