// Package config loads the nodeflow daemon settings from the environment.
//
// A .env file in the working directory is read first with godotenv. Values
// already present in the process environment win over the file.
//
// Recognised variables:
//
//	NODEFLOW_ADDR                  listen address (default ":8080")
//	NODEFLOW_HANDLER_TIMEOUT       per-handler timeout, 0 disables (default 30s)
//	NODEFLOW_FANOUT_CONCURRENCY    concurrent fan-out invocations (default 8)
//	NODEFLOW_REPLAY_BUFFER         events kept for a late subscriber (default 64)
//	NODEFLOW_JOB_RETENTION         how long finished jobs stay in memory (default 5m)
//	NODEFLOW_DATABASE_URL          Postgres URL; empty keeps job records in memory
//	NODEFLOW_FORMS_API_URL         forms service URL; empty disables the integration
//	NODEFLOW_DOCUMENTS_API_URL     documents service URL; empty disables the integration
package config
