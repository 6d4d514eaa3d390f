package store

// Schema is the baseline database schema. Later columns are added through
// best-effort migrations in New so existing databases keep working.
const Schema = `
CREATE TABLE IF NOT EXISTS orchestration_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT UNIQUE NOT NULL,
	conversation_id TEXT DEFAULT '',
	channel TEXT DEFAULT '',
	mode TEXT NOT NULL DEFAULT 'quick',
	model TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'prepared',
	error_text TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_run_id ON orchestration_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_conversation ON orchestration_runs(conversation_id);

CREATE TABLE IF NOT EXISTS context_packs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	pack TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_context_packs_run ON context_packs(run_id);

CREATE TABLE IF NOT EXISTS execution_plans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'heuristic',
	plan TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_execution_plans_run ON execution_plans(run_id);

CREATE TABLE IF NOT EXISTS judge_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	decision TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_judge_decisions_run ON judge_decisions(run_id);

CREATE TABLE IF NOT EXISTS agent_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agent_traces_run ON agent_traces(run_id);

CREATE TABLE IF NOT EXISTS tool_execution_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'prepared',
	args_snapshot TEXT DEFAULT '',
	result_snapshot TEXT DEFAULT '',
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tool_logs_run ON tool_execution_logs(run_id);

CREATE TABLE IF NOT EXISTS approval_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT UNIQUE NOT NULL,
	run_id TEXT DEFAULT '',
	action_type TEXT NOT NULL,
	target_type TEXT NOT NULL,
	target_ref TEXT DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'prepared',
	requested_by TEXT DEFAULT '',
	approved_by TEXT DEFAULT '',
	error_text TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_approval_actions_status ON approval_actions(status);
CREATE INDEX IF NOT EXISTS idx_approval_actions_updated ON approval_actions(updated_at);

CREATE TABLE IF NOT EXISTS approval_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	actor TEXT DEFAULT '',
	note TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_approval_transitions_action ON approval_transitions(action_id);
`
