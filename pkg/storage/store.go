package storage

import (
	"github.com/cuemby/judgehost/pkg/types"
)

// Store persists ProblemRecords across process restarts (§3 "Persistence
// surface: Problem packages and built-image tags survive process restart").
type Store interface {
	CreateProblem(record *types.ProblemRecord) error
	GetProblem(problemID string) (*types.ProblemRecord, error)
	ListProblems() ([]*types.ProblemRecord, error)
	UpdateProblem(record *types.ProblemRecord) error
	DeleteProblem(problemID string) error

	Close() error
}
