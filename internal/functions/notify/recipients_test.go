// internal/functions/notify/recipients_test.go
package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDirectory_MembersWithRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"first_name", "last_name", "email"}).
		AddRow("Ruth", "Okafor", "ruth@example.org").
		AddRow("Joel", "Mbeki", "joel@example.org")
	mock.ExpectQuery("JOIN member_roles mr").
		WithArgs(pq.Array([]string{"Elder", "Apostle"})).
		WillReturnRows(rows)

	dir := NewDirectory(db)
	recipients, err := dir.MembersWithRoles(context.Background(), "Elder", "Apostle")

	assert.NoError(t, err)
	assert.Len(t, recipients, 2)
	assert.Equal(t, "ruth@example.org", recipients[0].Email)
	assert.Equal(t, "Ruth Okafor", recipients[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_LeadsOfDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"first_name", "last_name", "email"}).
		AddRow("Ada", "", "ada@example.org")
	mock.ExpectQuery("JOIN department_members dm").
		WithArgs("dept-42").
		WillReturnRows(rows)

	dir := NewDirectory(db)
	recipients, err := dir.LeadsOfDepartment(context.Background(), "dept-42")

	assert.NoError(t, err)
	assert.Len(t, recipients, 1)
	assert.Equal(t, "Ada", recipients[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_LeadsOfDepartmentNamed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("JOIN departments d").
		WithArgs("Intercession").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email"}))

	dir := NewDirectory(db)
	recipients, err := dir.LeadsOfDepartmentNamed(context.Background(), "Intercession")

	assert.NoError(t, err)
	assert.Empty(t, recipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_LeadsOfMinistry_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("JOIN ministry_members mm").
		WithArgs("min-9").
		WillReturnError(fmt.Errorf("connection reset"))

	dir := NewDirectory(db)
	_, err = dir.LeadsOfMinistry(context.Background(), "min-9")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "QUERY_EXECUTION_FAILED")
	assert.NoError(t, mock.ExpectationsWereMet())
}
