package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/user"
	idgen "github.com/riskibarqy/castaway-league/internal/platform/id"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

type SubmitPickInput struct {
	LeagueID         string
	UserID           string
	CastawayID       string
	IdempotencyToken string
}

type SetDraftOrderInput struct {
	LeagueID  string
	Actor     user.Principal
	Order     []string
	Randomize bool
}

type DraftState struct {
	League      league.League
	PickNumber  int
	Round       int
	TotalPicks  int
	NextPicker  *string
	Entries     []draft.RosterEntry
	MemberCount int
}

// DraftService is the only writer of roster entries and draft status.
// Interactive picks and the auto-draft job both go through placePick.
type DraftService struct {
	leagueRepo league.Repository
	draftRepo  draft.Repository
	auditLog   *auditRecorder
	idGen      idgen.Generator
	logger     *logging.Logger
	now        func() time.Time
	shuffle    func(n int, swap func(i, j int))
}

func NewDraftService(
	leagueRepo league.Repository,
	draftRepo draft.Repository,
	auditRepo audit.Repository,
	idGen idgen.Generator,
	logger *logging.Logger,
) *DraftService {
	if logger == nil {
		logger = logging.Default()
	}
	return &DraftService{
		leagueRepo: leagueRepo,
		draftRepo:  draftRepo,
		auditLog:   newAuditRecorder(auditRepo, idGen, logger),
		idGen:      idGen,
		logger:     logger,
		now:        time.Now,
		shuffle:    rand.Shuffle,
	}
}

func (s *DraftService) SubmitPick(ctx context.Context, input SubmitPickInput) (draft.Receipt, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftService.SubmitPick")
	defer span.End()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.CastawayID = strings.TrimSpace(input.CastawayID)
	input.IdempotencyToken = strings.TrimSpace(input.IdempotencyToken)
	if input.LeagueID == "" {
		return draft.Receipt{}, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}
	if input.UserID == "" {
		return draft.Receipt{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.CastawayID == "" {
		return draft.Receipt{}, fmt.Errorf("%w: castaway id is required", ErrInvalidInput)
	}

	var (
		receipt  draft.Receipt
		replayed bool
	)
	err := s.draftRepo.WithinLeague(ctx, input.LeagueID, func(tx draft.Tx) error {
		key := draft.IdempotencyKey{LeagueID: input.LeagueID, UserID: input.UserID, Token: input.IdempotencyToken}
		if key.Token != "" {
			stored, found, err := tx.Receipt(ctx, key)
			if err != nil {
				return fmt.Errorf("load idempotency receipt: %w", err)
			}
			if found {
				if stored.Entry.CastawayID != input.CastawayID {
					return fmt.Errorf("%w: idempotency token already used for castaway %s", ErrInvalidInput, stored.Entry.CastawayID)
				}
				receipt, replayed = stored, true
				return nil
			}
		}

		board, err := loadBoard(ctx, tx)
		if err != nil {
			return err
		}

		item, found, err := tx.Castaway(ctx, input.CastawayID)
		if err != nil {
			return fmt.Errorf("get castaway: %w", err)
		}
		if !found {
			return fmt.Errorf("%w: castaway=%s", ErrCastawayNotFound, input.CastawayID)
		}
		if !item.Draftable() {
			return fmt.Errorf("%w: castaway %s is %s", ErrInvalidInput, item.ID, item.Status)
		}

		receipt, err = s.placePick(ctx, tx, board, input.UserID, input.CastawayID, draft.AcquiredViaDraft)
		if err != nil {
			return err
		}
		if err := s.enqueuePickNotifications(ctx, tx, board, receipt); err != nil {
			return err
		}
		if key.Token != "" {
			if err := tx.SaveReceipt(ctx, key, receipt); err != nil {
				return fmt.Errorf("save idempotency receipt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return draft.Receipt{}, mapDraftStoreError(err)
	}
	if replayed {
		return receipt, nil
	}

	s.auditLog.record(ctx, input.UserID, audit.ActionDraftPick, audit.TargetLeague, input.LeagueID, nil, map[string]any{
		"roster_id":      receipt.Entry.ID,
		"castaway_id":    receipt.Entry.CastawayID,
		"draft_round":    receipt.Entry.DraftRound,
		"draft_pick":     receipt.Entry.DraftPick,
		"draft_complete": receipt.DraftComplete,
	})
	return receipt, nil
}

func (s *DraftService) SetDraftOrder(ctx context.Context, input SetDraftOrderInput) (league.League, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftService.SetDraftOrder")
	defer span.End()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	if input.LeagueID == "" {
		return league.League{}, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}
	if !input.Randomize && len(input.Order) == 0 {
		return league.League{}, fmt.Errorf("%w: order or randomize is required", ErrInvalidInput)
	}
	if input.Randomize && len(input.Order) > 0 {
		return league.League{}, fmt.Errorf("%w: order and randomize are mutually exclusive", ErrInvalidInput)
	}

	var before, after league.League
	err := s.draftRepo.WithinLeague(ctx, input.LeagueID, func(tx draft.Tx) error {
		current, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("get league: %w", err)
		}
		if err := authorizeCommissioner(current, input.Actor); err != nil {
			return err
		}
		if current.DraftStatus != league.DraftPending {
			return fmt.Errorf("%w: draft status is %s", ErrDraftStarted, current.DraftStatus)
		}

		members, err := tx.Members(ctx)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		if len(members) == 0 {
			return fmt.Errorf("%w: league has no members", ErrInvalidInput)
		}

		order := make([]string, 0, len(members))
		if input.Randomize {
			for _, m := range members {
				order = append(order, m.UserID)
			}
			slices.Sort(order)
			s.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		} else {
			for _, item := range input.Order {
				order = append(order, strings.TrimSpace(item))
			}
			if err := validateDraftOrder(order, members); err != nil {
				return err
			}
		}

		if err := tx.UpdateDraftOrder(ctx, order, s.now().UTC()); err != nil {
			return fmt.Errorf("update draft order: %w", err)
		}
		before = current
		after = current
		after.DraftOrder = order
		return nil
	})
	if err != nil {
		return league.League{}, mapDraftStoreError(err)
	}

	s.auditLog.record(ctx, input.Actor.UserID, audit.ActionDraftSetOrder, audit.TargetLeague, input.LeagueID,
		map[string]any{"draft_order": before.DraftOrder},
		map[string]any{"draft_order": after.DraftOrder, "randomized": input.Randomize},
	)
	return after, nil
}

// StartDraft opens a pending draft once the order covers every member.
func (s *DraftService) StartDraft(ctx context.Context, leagueID string, actor user.Principal) (league.League, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftService.StartDraft")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return league.League{}, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	var started league.League
	err := s.draftRepo.WithinLeague(ctx, leagueID, func(tx draft.Tx) error {
		current, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("get league: %w", err)
		}
		if err := authorizeCommissioner(current, actor); err != nil {
			return err
		}
		if current.DraftStatus != league.DraftPending {
			return fmt.Errorf("%w: draft status is %s", ErrDraftStarted, current.DraftStatus)
		}
		members, err := tx.Members(ctx)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		if len(members) == 0 {
			return fmt.Errorf("%w: league has no members", ErrInvalidInput)
		}
		if err := validateDraftOrder(current.DraftOrder, members); err != nil {
			return err
		}

		started = current
		if err := started.AdvanceDraft(league.DraftInProgress); err != nil {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if err := tx.UpdateDraftStatus(ctx, started.DraftStatus, started.Status, s.now().UTC()); err != nil {
			return fmt.Errorf("update draft status: %w", err)
		}

		first, _ := draft.PickerFor(started.DraftOrder, 0)
		return tx.EnqueueNotification(ctx, s.newNotification(notification.KindDraftYourTurn, first, "The draft is open and you pick first", map[string]any{
			"league_id":   started.ID,
			"draft_pick":  1,
			"draft_round": 1,
		}))
	})
	if err != nil {
		return league.League{}, mapDraftStoreError(err)
	}

	s.auditLog.record(ctx, actor.UserID, audit.ActionDraftStart, audit.TargetLeague, leagueID,
		map[string]any{"draft_status": league.DraftPending},
		map[string]any{"draft_status": started.DraftStatus},
	)
	return started, nil
}

func (s *DraftService) GetDraftState(ctx context.Context, leagueID string) (DraftState, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftService.GetDraftState")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return DraftState{}, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	item, found, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return DraftState{}, fmt.Errorf("get league: %w", err)
	}
	if !found {
		return DraftState{}, fmt.Errorf("%w: league=%s", ErrLeagueNotFound, leagueID)
	}
	entries, err := s.draftRepo.ListRosterEntries(ctx, leagueID)
	if err != nil {
		return DraftState{}, fmt.Errorf("list roster entries: %w", err)
	}

	state := DraftState{
		League:      item,
		PickNumber:  len(entries),
		TotalPicks:  draft.TotalPicks(len(item.DraftOrder)),
		Entries:     entries,
		MemberCount: len(item.DraftOrder),
	}
	if item.DraftStatus == league.DraftInProgress && state.PickNumber < state.TotalPicks {
		state.Round, _ = draft.Turn(state.PickNumber, len(item.DraftOrder))
		if next, ok := draft.PickerFor(item.DraftOrder, state.PickNumber); ok {
			state.NextPicker = &next
		}
	}
	return state, nil
}

// board is the in-transaction view of one league's draft.
type board struct {
	league  league.League
	members []league.Member
	picks   int
	taken   map[string]struct{}
}

func loadBoard(ctx context.Context, tx draft.Tx) (*board, error) {
	current, err := tx.League(ctx)
	if err != nil {
		return nil, fmt.Errorf("get league: %w", err)
	}
	if current.DraftStatus != league.DraftInProgress {
		return nil, fmt.Errorf("%w: draft status is %s", ErrDraftNotOpen, current.DraftStatus)
	}
	members, err := tx.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if len(current.DraftOrder) != len(members) || len(members) == 0 {
		return nil, fmt.Errorf("%w: draft order has %d entries for %d members", ErrConflict, len(current.DraftOrder), len(members))
	}
	entries, err := tx.RosterEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster entries: %w", err)
	}

	b := &board{
		league:  current,
		members: members,
		picks:   len(entries),
		taken:   make(map[string]struct{}, len(entries)),
	}
	for _, entry := range entries {
		if entry.Active() {
			b.taken[entry.CastawayID] = struct{}{}
		}
	}
	return b, nil
}

// placePick validates the turn and castaway against the locked board and
// inserts one roster entry, completing the draft on the final pick.
func (s *DraftService) placePick(
	ctx context.Context,
	tx draft.Tx,
	b *board,
	userID, castawayID string,
	via draft.AcquiredVia,
) (draft.Receipt, error) {
	if b.league.DraftStatus != league.DraftInProgress {
		return draft.Receipt{}, fmt.Errorf("%w: draft status is %s", ErrDraftNotOpen, b.league.DraftStatus)
	}
	order := b.league.DraftOrder
	total := draft.TotalPicks(len(order))
	if b.picks >= total {
		return draft.Receipt{}, fmt.Errorf("%w: all %d picks are made", ErrDraftNotOpen, total)
	}

	round, idx := draft.Turn(b.picks, len(order))
	if idx < 0 {
		return draft.Receipt{}, fmt.Errorf("%w: draft order is empty", ErrConflict)
	}
	if order[idx] != userID {
		return draft.Receipt{}, fmt.Errorf("%w: pick %d belongs to another member", ErrNotYourTurn, b.picks+1)
	}
	if _, taken := b.taken[castawayID]; taken {
		return draft.Receipt{}, fmt.Errorf("%w: castaway=%s", ErrCastawayTaken, castawayID)
	}

	entryID, err := s.idGen.NewID()
	if err != nil {
		return draft.Receipt{}, fmt.Errorf("generate roster entry id: %w", err)
	}
	now := s.now().UTC()
	entry := draft.RosterEntry{
		ID:          entryID,
		LeagueID:    b.league.ID,
		UserID:      userID,
		CastawayID:  castawayID,
		DraftRound:  round,
		DraftPick:   b.picks + 1,
		AcquiredVia: via,
		AcquiredAt:  now,
	}
	if err := tx.InsertRosterEntry(ctx, entry); err != nil {
		return draft.Receipt{}, fmt.Errorf("insert roster entry: %w", err)
	}
	b.picks++
	b.taken[castawayID] = struct{}{}

	receipt := draft.Receipt{Entry: entry}
	if b.picks == total {
		if err := s.completeDraft(ctx, tx, b, now); err != nil {
			return draft.Receipt{}, err
		}
		receipt.DraftComplete = true
		return receipt, nil
	}
	next, _ := draft.PickerFor(order, b.picks)
	receipt.NextPicker = &next
	return receipt, nil
}

func (s *DraftService) completeDraft(ctx context.Context, tx draft.Tx, b *board, now time.Time) error {
	if err := b.league.AdvanceDraft(league.DraftCompleted); err != nil {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err := tx.UpdateDraftStatus(ctx, b.league.DraftStatus, b.league.Status, now); err != nil {
		return fmt.Errorf("update draft status: %w", err)
	}
	for _, m := range b.members {
		msg := s.newNotification(notification.KindDraftComplete, m.UserID, "Your league draft is complete", map[string]any{
			"league_id":   b.league.ID,
			"total_picks": b.picks,
		})
		if err := tx.EnqueueNotification(ctx, msg); err != nil {
			return fmt.Errorf("enqueue draft complete notification: %w", err)
		}
	}
	return nil
}

func (s *DraftService) enqueuePickNotifications(ctx context.Context, tx draft.Tx, b *board, receipt draft.Receipt) error {
	if receipt.DraftComplete || receipt.NextPicker == nil {
		return nil
	}
	round, _ := draft.Turn(b.picks, len(b.league.DraftOrder))
	msg := s.newNotification(notification.KindDraftYourTurn, *receipt.NextPicker, "You are on the clock", map[string]any{
		"league_id":   b.league.ID,
		"draft_pick":  b.picks + 1,
		"draft_round": round,
	})
	if err := tx.EnqueueNotification(ctx, msg); err != nil {
		return fmt.Errorf("enqueue next picker notification: %w", err)
	}
	return nil
}

func (s *DraftService) newNotification(kind notification.Kind, recipient, subject string, payload map[string]any) notification.Message {
	messageID, err := s.idGen.NewID()
	if err != nil {
		s.logger.Warn("generate outbox id failed, falling back to derived id", "error", err)
		messageID = fmt.Sprintf("%s-%s-%d", kind, recipient, s.now().UnixNano())
	}
	return newOutboxMessage(messageID, kind, recipient, subject, payload, s.now().UTC())
}

func authorizeCommissioner(item league.League, actor user.Principal) error {
	if actor.IsAdmin() || (actor.UserID != "" && actor.UserID == item.CommissionerID) {
		return nil
	}
	return fmt.Errorf("%w: only the commissioner or an admin can manage the draft", ErrForbidden)
}

func validateDraftOrder(order []string, members []league.Member) error {
	if len(order) != len(members) {
		return fmt.Errorf("%w: draft order has %d entries for %d members", ErrInvalidInput, len(order), len(members))
	}
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m.UserID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(order))
	for _, userID := range order {
		if _, ok := memberSet[userID]; !ok {
			return fmt.Errorf("%w: %q is not a league member", ErrInvalidInput, userID)
		}
		if _, dup := seen[userID]; dup {
			return fmt.Errorf("%w: %q appears twice in draft order", ErrInvalidInput, userID)
		}
		seen[userID] = struct{}{}
	}
	return nil
}

func mapDraftStoreError(err error) error {
	switch {
	case errors.Is(err, draft.ErrLeagueNotFound):
		return fmt.Errorf("%w: %v", ErrLeagueNotFound, err)
	case errors.Is(err, draft.ErrCastawayTaken):
		return fmt.Errorf("%w: %v", ErrCastawayTaken, err)
	default:
		return err
	}
}
