package memory

import (
	"fmt"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
)

const (
	LeagueIDDemo       = "demo-league-s47"
	CommissionerIDDemo = "user-commissioner"
)

func SeedRules() []scoring.Rule {
	return []scoring.Rule{
		{ID: "individual-immunity", Name: "Wins individual immunity", Category: scoring.CategoryChallenge, Points: 10},
		{ID: "tribal-immunity", Name: "Wins tribal immunity", Category: scoring.CategoryChallenge, Points: 3},
		{ID: "reward", Name: "Wins reward", Category: scoring.CategoryChallenge, Points: 2},
		{ID: "idol-found", Name: "Finds a hidden immunity idol", Category: scoring.CategoryStrategy, Points: 5},
		{ID: "idol-played", Name: "Plays an idol correctly", Category: scoring.CategoryStrategy, Points: 8},
		{ID: "vote-correct", Name: "Votes with the majority", Category: scoring.CategoryTribal, Points: 2},
		{ID: "votes-received", Name: "Vote received at tribal", Category: scoring.CategoryTribal, Points: -1},
		{ID: "confessional", Name: "Confessional", Category: scoring.CategorySocial, Points: 1},
		{ID: "survived", Name: "Survives the episode", Category: scoring.CategoryBonus, Points: 2},
	}
}

func SeedCastaways() []castaway.Castaway {
	names := []string{
		"Andy", "Caroline", "Genevieve", "Gabe", "Kishan", "Kyle",
		"Rachel", "Sam", "Sierra", "Sue", "Teeny", "Tiyana",
		"Aysha", "Jon", "Rome", "Solomon", "TK", "Anika",
	}
	out := make([]castaway.Castaway, 0, len(names))
	for i, name := range names {
		out = append(out, castaway.Castaway{
			ID:     fmt.Sprintf("castaway-%02d", i+1),
			Name:   name,
			Tribe:  []string{"Gata", "Lavo", "Tuku"}[i%3],
			Status: castaway.StatusActive,
		})
	}
	return out
}

func SeedEpisodes(premiere time.Time) []episode.Episode {
	out := make([]episode.Episode, 0, 13)
	for i := 0; i < 13; i++ {
		out = append(out, episode.Episode{
			ID:     fmt.Sprintf("episode-%02d", i+1),
			Number: i + 1,
			Title:  fmt.Sprintf("Episode %d", i+1),
			AirAt:  premiere.AddDate(0, 0, 7*i),
		})
	}
	return out
}

func SeedDemoLeague(deadline time.Time) (league.League, []league.Member) {
	users := []string{CommissionerIDDemo, "user-avery", "user-blake", "user-casey"}
	members := make([]league.Member, 0, len(users))
	for i, userID := range users {
		members = append(members, league.Member{LeagueID: LeagueIDDemo, UserID: userID, DraftPosition: i + 1})
	}
	return league.League{
		ID:              LeagueIDDemo,
		Name:            "Island Insiders",
		CommissionerID:  CommissionerIDDemo,
		DraftStatus:     league.DraftPending,
		DraftOrder:      users,
		Status:          league.StatusDraft,
		DraftDeadlineAt: &deadline,
	}, members
}

// NewSeededStore returns a store populated with demo data for local runs.
func NewSeededStore(now time.Time) *Store {
	store := NewStore()
	store.SeedRules(SeedRules()...)
	store.SeedCastaways(SeedCastaways()...)
	store.SeedEpisodes(SeedEpisodes(now.AddDate(0, 0, 7))...)
	item, members := SeedDemoLeague(now.AddDate(0, 0, 6))
	store.SeedLeague(item, members...)
	return store
}
