// Package repository defines the backend-neutral contracts of unistore: the
// unified Repository operation set, the Store adapter interface, transaction
// options and contexts, and the per-repository Options binding. The
// relational and mongodb packages implement these contracts.
package repository
