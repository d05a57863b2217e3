package entity

// Column names used in predicates and ordering.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnVersion   = "version"

	ColumnUsername = "username"
	ColumnEmail    = "email"

	ColumnOwnerID       = "owner_id"
	ColumnAccountNumber = "account_number"
	ColumnIsLocked      = "is_locked"

	ColumnAccountID             = "account_id"
	ColumnCounterpartyAccountID = "counterparty_account_id"
	ColumnTransferID            = "transfer_id"
	ColumnTransactionType       = "type"

	ColumnPlate     = "plate"
	ColumnVehicleID = "vehicle_id"

	ColumnAddress = "address"
	ColumnForSale = "for_sale"
	ColumnPrice   = "price"

	ColumnName          = "name"
	ColumnIsActive      = "is_active"
	ColumnRequiredLevel = "required_level"
)
