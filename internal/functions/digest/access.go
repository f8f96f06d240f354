// internal/functions/digest/access.go
package digest

import (
	"context"
	"database/sql"
)

// AccessChecker answers whether a member may read a board. Any error from
// the check is treated by the batcher as denial for that board only.
type AccessChecker interface {
	HasBoardAccess(ctx context.Context, boardID, memberID string) (bool, error)
}

// MembershipAccessChecker grants access when the member belongs to the
// department the board is attached to, or when the board is open to the
// whole congregation.
type MembershipAccessChecker struct {
	db *sql.DB
}

func NewMembershipAccessChecker(db *sql.DB) *MembershipAccessChecker {
	return &MembershipAccessChecker{db: db}
}

const boardAccessQuery = `
	SELECT EXISTS (
		SELECT 1
		FROM boards b
		LEFT JOIN department_members dm
		  ON dm.department_id = b.department_id AND dm.member_id = $2
		WHERE b.id = $1
		  AND (b.department_id IS NULL OR dm.member_id IS NOT NULL)
	)`

func (c *MembershipAccessChecker) HasBoardAccess(ctx context.Context, boardID, memberID string) (bool, error) {
	var allowed bool
	err := c.db.QueryRowContext(ctx, boardAccessQuery, boardID, memberID).Scan(&allowed)
	if err != nil {
		return false, err
	}
	return allowed, nil
}
