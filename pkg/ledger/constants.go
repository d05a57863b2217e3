package ledger

const (
	operationCreateAccount = "create_account"
	operationDeposit       = "deposit"
	operationDepositCash   = "deposit_cash"
	operationWithdraw      = "withdraw"
	operationWithdrawCash  = "withdraw_cash"
	operationTransfer      = "transfer"
	operationHistory       = "transaction_history"
	operationLookup        = "lookup"
	operationLock          = "lock_account"
	operationUnlock        = "unlock_account"

	subjectAccount     = "account"
	subjectPlayer      = "player"
	subjectDestination = "destination"
	subjectPIN         = "pin"

	codeNotFound    = "not_found"
	codeLocked      = "locked"
	codeAuth        = "auth_failed"
	codeConflict    = "conflict"
	codePersistence = "persistence"
	codeInvalid     = "invalid"

	OperationStatusOK       = "ok"
	OperationStatusDeclined = "declined"
	OperationStatusError    = "error"

	accountNumberPrefix        = "ACC"
	accountNumberSuffixMinimum = 100000
	accountNumberSuffixSpan    = 900000

	defaultAccountNumberAttempts = 10
	defaultStaleRetries          = 5
	defaultHistoryLimit          = 50
	maxHistoryLimit              = 500

	pinMinDigits = 4
	pinMaxDigits = 8

	transferToDescription   = "Transfer to %s"
	transferFromDescription = "Transfer from %s"
)
