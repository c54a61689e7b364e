// Package relational implements the unistore contracts on SQL databases
// through Bun, supporting the postgres, mysql, and sqlite dialects. Abstract
// filters are translated into parameterized WHERE clauses under a central
// column whitelist; transactions retry on serialization failures and
// deadlocks.
package relational
