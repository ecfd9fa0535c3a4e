package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockSQLExecutor is a mock implementation of SQLExecutor interface
type MockSQLExecutor struct {
	mock.Mock
}

func (m *MockSQLExecutor) ExecContext(ctx context.Context, query string, queryArgs ...any) (sql.Result, error) {
	args := m.Called(ctx, query, queryArgs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(sql.Result), args.Error(1)
}

func (m *MockSQLExecutor) QueryRowContext(ctx context.Context, query string, queryArgs ...any) *sql.Row {
	args := m.Called(ctx, query, queryArgs)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*sql.Row)
}

// MockResult is a mock implementation of sql.Result
type MockResult struct {
	mock.Mock
}

func (m *MockResult) LastInsertId() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockResult) RowsAffected() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func TestExecContext_Success(t *testing.T) {
	mockDB := new(MockSQLExecutor)
	mockResult := new(MockResult)

	query := "UPDATE users SET password_hash = $1 WHERE email = $2"
	mockResult.On("RowsAffected").Return(int64(1), nil)
	mockDB.On("ExecContext", mock.Anything, query, mock.Anything).Return(mockResult, nil)

	res, err := mockDB.ExecContext(context.Background(), query, "hash", "a@x.com")

	assert.NoError(t, err)
	affected, err := res.RowsAffected()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	mockDB.AssertExpectations(t)
}

func TestExecContext_Error(t *testing.T) {
	mockDB := new(MockSQLExecutor)

	query := "INSERT INTO users (email) VALUES ($1)"
	mockDB.On("ExecContext", mock.Anything, query, mock.Anything).
		Return(nil, errors.New("duplicate key"))

	_, err := mockDB.ExecContext(context.Background(), query, "a@x.com")

	assert.Error(t, err)
	mockDB.AssertExpectations(t)
}
