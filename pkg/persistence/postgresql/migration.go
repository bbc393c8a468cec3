package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create executions table
			CREATE TABLE executions (
				execution_id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('queued', 'auto_healing', 'completed', 'failed')),
				validation_progress JSONB,
				workflow_json JSONB,
				errors JSONB,
				auto_healed BOOLEAN NOT NULL DEFAULT false,
				applied_fixes JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_user_id ON executions(user_id);
			CREATE INDEX idx_executions_updated_at ON executions(updated_at);
		`,
	}
}
