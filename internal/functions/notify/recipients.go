// internal/functions/notify/recipients.go
package notify

import (
	"context"
	"database/sql"
	"fmt"

	"congregation-functions/internal/common/errors"
	"congregation-functions/internal/models"

	"github.com/lib/pq"
)

// Directory resolves recipient lists from the membership tables. Members
// without an email address are filtered out at query level; duplicate emails
// across roles are passed through as-is.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

const leadsOfDepartmentQuery = `
	SELECT m.first_name, m.last_name, m.email
	FROM members m
	JOIN department_members dm ON dm.member_id = m.id
	WHERE dm.department_id = $1
	  AND dm.is_lead = TRUE
	  AND m.email IS NOT NULL AND m.email <> ''
	ORDER BY m.id`

const leadsOfDepartmentNamedQuery = `
	SELECT m.first_name, m.last_name, m.email
	FROM members m
	JOIN department_members dm ON dm.member_id = m.id
	JOIN departments d ON d.id = dm.department_id
	WHERE d.name = $1
	  AND dm.is_lead = TRUE
	  AND m.email IS NOT NULL AND m.email <> ''
	ORDER BY m.id`

const leadsOfMinistryQuery = `
	SELECT m.first_name, m.last_name, m.email
	FROM members m
	JOIN ministry_members mm ON mm.member_id = m.id
	WHERE mm.ministry_id = $1
	  AND mm.is_lead = TRUE
	  AND m.email IS NOT NULL AND m.email <> ''
	ORDER BY m.id`

const membersWithRolesQuery = `
	SELECT m.first_name, m.last_name, m.email
	FROM members m
	JOIN member_roles mr ON mr.member_id = m.id
	WHERE mr.role = ANY($1)
	  AND m.email IS NOT NULL AND m.email <> ''
	ORDER BY m.id`

// LeadsOfDepartment returns the leads of the department with the given id.
func (d *Directory) LeadsOfDepartment(ctx context.Context, departmentID string) ([]models.Recipient, error) {
	return d.queryRecipients(ctx, "leads_of_department", leadsOfDepartmentQuery, departmentID)
}

// LeadsOfDepartmentNamed returns the leads of the department with the given
// name. Used for event types routed to a fixed department.
func (d *Directory) LeadsOfDepartmentNamed(ctx context.Context, departmentName string) ([]models.Recipient, error) {
	return d.queryRecipients(ctx, "leads_of_department_named", leadsOfDepartmentNamedQuery, departmentName)
}

// LeadsOfMinistry returns the leads of the ministry with the given id.
func (d *Directory) LeadsOfMinistry(ctx context.Context, ministryID string) ([]models.Recipient, error) {
	return d.queryRecipients(ctx, "leads_of_ministry", leadsOfMinistryQuery, ministryID)
}

// MembersWithRoles returns every member holding at least one of the given
// roles. A member holding several of the roles appears once per role row.
func (d *Directory) MembersWithRoles(ctx context.Context, roles ...string) ([]models.Recipient, error) {
	return d.queryRecipients(ctx, "members_with_roles", membersWithRolesQuery, pq.Array(roles))
}

func (d *Directory) queryRecipients(ctx context.Context, queryName, query string, args ...interface{}) ([]models.Recipient, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(queryName, err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var firstName, lastName sql.NullString
		var email string
		if err := rows.Scan(&firstName, &lastName, &email); err != nil {
			return nil, errors.NewQueryExecutionFailedError(queryName, err)
		}
		recipients = append(recipients, models.Recipient{
			Email: email,
			Name:  joinName(firstName.String, lastName.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError(queryName, err)
	}
	return recipients, nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return fmt.Sprintf("%s %s", first, last)
	}
}
