package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitbaba/internal/models"
	"github.com/mmynk/splitbaba/internal/realtime"
	"github.com/mmynk/splitbaba/internal/storage"
)

// inviteCodeAttempts bounds the retries when a generated invite code is taken.
const inviteCodeAttempts = 20

// generateInviteCode returns a code of the form HOUSE-NNNN.
func generateInviteCode() string {
	return fmt.Sprintf("HOUSE-%d", 1000+rand.IntN(9000))
}

// NormalizeInviteCode trims and upper-cases a user-entered invite code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateHousehold creates a household and adds the owner as its first member.
func (s *SQLiteStore) CreateHousehold(ctx context.Context, name, ownerID string) (*models.Household, error) {
	now := time.Now()
	household := &models.Household{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now.Unix(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for attempt := 0; attempt < inviteCodeAttempts && household.InviteCode == ""; attempt++ {
		code := generateInviteCode()
		var taken int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM households WHERE invite_code = ?", code).Scan(&taken)
		if errors.Is(err, sql.ErrNoRows) {
			household.InviteCode = code
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check invite code: %w", err)
		}
	}
	if household.InviteCode == "" {
		return nil, fmt.Errorf("failed to allocate a free invite code after %d attempts", inviteCodeAttempts)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO households (id, name, invite_code, created_at) VALUES (?, ?, ?, ?)",
		household.ID, household.Name, household.InviteCode, household.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert household: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO household_members (household_id, user_id, joined_at) VALUES (?, ?, ?)",
		household.ID, ownerID, now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner to household: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.notify(ctx, household.ID, realtime.TableMembers)
	return household, nil
}

// JoinHousehold adds the user to the household with the given invite code.
// Joining a household the user already belongs to is a no-op.
func (s *SQLiteStore) JoinHousehold(ctx context.Context, inviteCode, userID string) (*models.Household, error) {
	household := &models.Household{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, invite_code, created_at FROM households WHERE invite_code = ?",
		NormalizeInviteCode(inviteCode),
	).Scan(&household.ID, &household.Name, &household.InviteCode, &household.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find household: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO household_members (household_id, user_id, joined_at) VALUES (?, ?, ?)",
		household.ID, userID, time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to join household: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.notify(ctx, household.ID, realtime.TableMembers)
	}
	return household, nil
}

// HouseholdForUser returns the household the user joined first.
// Returns nil and no error if the user belongs to none.
func (s *SQLiteStore) HouseholdForUser(ctx context.Context, userID string) (*models.Household, error) {
	household := &models.Household{}
	err := s.db.QueryRowContext(ctx, `
		SELECT h.id, h.name, h.invite_code, h.created_at
		FROM households h
		JOIN household_members m ON m.household_id = h.id
		WHERE m.user_id = ?
		ORDER BY m.joined_at
		LIMIT 1`,
		userID,
	).Scan(&household.ID, &household.Name, &household.InviteCode, &household.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get household for user: %w", err)
	}
	return household, nil
}

// FetchMembers lists the members of a household in joining order.
func (s *SQLiteStore) FetchMembers(ctx context.Context, householdID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.display_name
		FROM household_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.household_id = ?
		ORDER BY m.joined_at, u.id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}
