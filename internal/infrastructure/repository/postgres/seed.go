package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/castaway-league/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the demo season into an empty database.
func BootstrapSeed(ctx context.Context, db *sqlx.DB, now time.Time) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM castaways`); err != nil {
		return fmt.Errorf("count castaways for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	return withinTx(ctx, db, "bootstrap seed", func(tx *sqlx.Tx) error {
		exec := func(label, query string, arg map[string]any) error {
			sqlQuery, args, err := sqlx.Named(query, arg)
			if err != nil {
				return fmt.Errorf("bind seed %s query: %w", label, err)
			}
			sqlQuery = tx.Rebind(sqlQuery)
			if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
				return fmt.Errorf("seed %s: %w", label, err)
			}
			return nil
		}

		for _, r := range memory.SeedRules() {
			if err := exec("rule "+r.ID, `
INSERT INTO scoring_rules (id, name, category, points)
VALUES (:id, :name, :category, :points)
ON CONFLICT (id) DO NOTHING`, map[string]any{
				"id":       r.ID,
				"name":     r.Name,
				"category": string(r.Category),
				"points":   r.Points,
			}); err != nil {
				return err
			}
		}

		for _, c := range memory.SeedCastaways() {
			if err := exec("castaway "+c.ID, `
INSERT INTO castaways (id, name, tribe, status)
VALUES (:id, :name, :tribe, :status)
ON CONFLICT (id) DO NOTHING`, map[string]any{
				"id":     c.ID,
				"name":   c.Name,
				"tribe":  c.Tribe,
				"status": string(c.Status),
			}); err != nil {
				return err
			}
		}

		for _, e := range memory.SeedEpisodes(now.AddDate(0, 0, 7)) {
			if err := exec("episode "+e.ID, `
INSERT INTO episodes (id, number, title, air_at)
VALUES (:id, :number, :title, :air_at)
ON CONFLICT (id) DO NOTHING`, map[string]any{
				"id":     e.ID,
				"number": e.Number,
				"title":  e.Title,
				"air_at": e.AirAt.UTC(),
			}); err != nil {
				return err
			}
		}

		l, members := memory.SeedDemoLeague(now.AddDate(0, 0, 6))
		if err := exec("league "+l.ID, `
INSERT INTO leagues (id, name, commissioner_id, draft_status, draft_order, status, draft_deadline_at)
VALUES (:id, :name, :commissioner_id, :draft_status, :draft_order, :status, :draft_deadline_at)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":                l.ID,
			"name":              l.Name,
			"commissioner_id":   l.CommissionerID,
			"draft_status":      string(l.DraftStatus),
			"draft_order":       pq.StringArray(l.DraftOrder),
			"status":            string(l.Status),
			"draft_deadline_at": utcPtr(l.DraftDeadlineAt),
		}); err != nil {
			return err
		}
		for _, m := range members {
			if err := exec("member "+m.UserID, `
INSERT INTO league_members (league_id, user_id, draft_position)
VALUES (:league_id, :user_id, :draft_position)
ON CONFLICT (league_id, user_id) DO NOTHING`, map[string]any{
				"league_id":      m.LeagueID,
				"user_id":        m.UserID,
				"draft_position": m.DraftPosition,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
