package ledger

import (
	"context"
	"testing"
)

func TestServiceLogsOperationStatuses(test *testing.T) {
	test.Parallel()
	fixture := newFixture(test)
	ctx := context.Background()
	player := fixture.mustPlayer(test, "logged")
	account := fixture.mustAccount(test, player.ID, 10)

	testCases := []struct {
		name       string
		run        func() error
		wantOp     string
		wantStatus string
	}{
		{
			name: "ok",
			run: func() error {
				_, err := fixture.service.Deposit(ctx, account.ID, 5, "")
				return err
			},
			wantOp:     operationDeposit,
			wantStatus: OperationStatusOK,
		},
		{
			name: "declined",
			run: func() error {
				_, err := fixture.service.Withdraw(ctx, account.ID, 1000, correctPIN, "")
				return err
			},
			wantOp:     operationWithdraw,
			wantStatus: OperationStatusDeclined,
		},
		{
			name: "error",
			run: func() error {
				_, err := fixture.service.Transfer(ctx, account.ID, 404, 1, correctPIN)
				if err == nil {
					test.Fatalf("expected transfer error")
				}
				return nil
			},
			wantOp:     operationTransfer,
			wantStatus: OperationStatusError,
		},
	}
	for _, testCase := range testCases {
		if err := testCase.run(); err != nil {
			test.Fatalf("%s: %v", testCase.name, err)
		}
		entry := fixture.logger.last(test)
		if entry.Operation != testCase.wantOp || entry.Status != testCase.wantStatus || entry.AccountID != account.ID {
			test.Fatalf("%s: unexpected log entry %+v", testCase.name, entry)
		}
	}
}

func TestServiceWithoutLoggerDoesNotPanic(test *testing.T) {
	test.Parallel()
	fixture := newFixture(test)
	fixture.service.logger = nil
	player := fixture.mustPlayer(test, "silent")
	fixture.mustAccount(test, player.ID, 1)
}
