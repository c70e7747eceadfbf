package repository

import "errors"

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")

	ErrGameyaNotFound        = errors.New("gameya not found")
	ErrGameyaNotActive       = errors.New("gameya is not active")
	ErrGameyaFull            = errors.New("gameya is full")
	ErrAlreadyMember         = errors.New("already an active member of this gameya")
	ErrNotAMember            = errors.New("not an active member of this gameya")
	ErrAlreadyContributed    = errors.New("already contributed for this round")
	ErrNoEligibleBeneficiary = errors.New("no active member found for the current payout order")

	ErrLoanNotFound     = errors.New("loan not found")
	ErrAlreadyProcessed = errors.New("loan is already processed")
	ErrNotRepayable     = errors.New("only approved loans can be repaid")
	ErrOverRepayment    = errors.New("repayment exceeds remaining amount due")
	ErrActiveLoanExists = errors.New("an unsettled loan already exists for this user")
	ErrTrustScoreTooLow = errors.New("trust score is too low to apply for a loan")
)
