/*
Package storage provides BoltDB-backed persistence for the Problem
Registry. Problem packages and their built-image tags survive process
restart; the Job Queue and Image Cache are explicitly in-memory and do
not persist here (§3).

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/judgehost.db             │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ problems   (problem_id key) │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management                │          │
	│  │  - Read: db.View()  — concurrent readers     │          │
	│  │  - Write: db.Update() — single writer        │          │
	│  └────────────────────────────────────────────────┘        │
	└─────────────────────────────────────────────────────────┘

# Usage

	store, err := storage.NewBoltStore("/var/lib/judgehost")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.CreateProblem(record); err != nil {
		log.Fatal(err)
	}

	records, err := store.ListProblems()

On startup, pkg/registry.Registry.Load() reads every ProblemRecord from
this store to seed its in-memory map (§4.1); the Image Cache itself is
rebuilt lazily, confirming via the Runtime Facade that a persisted image
tag still exists before treating it as a cache hit.

# Integration Points

This package integrates with:

  - pkg/types: ProblemRecord
  - pkg/registry: Problem Registry, seeded from this store on startup
  - go.etcd.io/bbolt: embedded key-value engine
*/
package storage
