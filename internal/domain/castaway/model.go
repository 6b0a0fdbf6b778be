package castaway

import (
	"context"
	"fmt"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusEliminated Status = "eliminated"
	StatusWinner     Status = "winner"
)

type Castaway struct {
	ID                  string
	Name                string
	Tribe               string
	Status              Status
	EliminatedEpisodeID string
}

func (c Castaway) Draftable() bool {
	return c.Status == StatusActive
}

func (c Castaway) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("castaway id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("castaway name is required")
	}
	switch c.Status {
	case StatusActive, StatusEliminated, StatusWinner:
	default:
		return fmt.Errorf("unknown castaway status %q", c.Status)
	}
	return nil
}

type Repository interface {
	List(ctx context.Context) ([]Castaway, error)
	ListActive(ctx context.Context) ([]Castaway, error)
	GetByID(ctx context.Context, castawayID string) (Castaway, bool, error)
}
