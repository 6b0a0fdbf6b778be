package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("id", "name").
		From("castaways").
		Where(Eq("status", "active"), IsNull("deleted_at")).
		OrderBy("id").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT id, name FROM castaways WHERE status = $1 AND deleted_at IS NULL ORDER BY id LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "active" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilderForUpdate(t *testing.T) {
	tests := []struct {
		name      string
		modifiers []string
		want      string
	}{
		{name: "plain", want: "SELECT id FROM leagues WHERE public_id = $1 FOR UPDATE"},
		{name: "skip locked", modifiers: []string{"SKIP LOCKED"}, want: "SELECT id FROM leagues WHERE public_id = $1 FOR UPDATE SKIP LOCKED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, _, err := Select("id").From("leagues").Where(Eq("public_id", "l1")).ForUpdate(tt.modifiers...).ToSQL()
			if err != nil {
				t.Fatalf("build select query: %v", err)
			}
			if query != tt.want {
				t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", tt.want, query)
			}
		})
	}
}

func TestInsertBuilder(t *testing.T) {
	query, args, err := InsertInto("roster_entries").
		Columns("public_id", "castaway_public_id").
		Values("r1", "c1").
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO roster_entries (public_id, castaway_public_id) VALUES ($1, $2) RETURNING id"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "r1" || args[1] != "c1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("leagues").
		Set("draft_status", "completed").
		SetExpr("updated_at", "NOW()").
		Where(Eq("public_id", "l1")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE leagues SET draft_status = $1, updated_at = NOW() WHERE public_id = $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "completed" || args[1] != "l1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestDeleteBuilder(t *testing.T) {
	query, args, err := DeleteFrom("staged_scores").
		Where(Eq("episode_public_id", "e1"), Eq("rule_public_id", "vote")).
		ToSQL()
	if err != nil {
		t.Fatalf("build delete query: %v", err)
	}

	wantQuery := "DELETE FROM staged_scores WHERE episode_public_id = $1 AND rule_public_id = $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 {
		t.Fatalf("unexpected args: %+v", args)
	}

	if _, _, err := DeleteFrom("staged_scores").ToSQL(); err == nil {
		t.Fatalf("expected unconditional delete to be rejected")
	}
}

func TestExprRewritesPlaceholders(t *testing.T) {
	query, args, err := Select("id").
		From("outbox_messages").
		Where(Eq("status", "pending"), Expr("next_attempt_at <= ?", "now")).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT id FROM outbox_messages WHERE status = $1 AND next_attempt_at <= $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[1] != "now" {
		t.Fatalf("unexpected args: %+v", args)
	}
}
