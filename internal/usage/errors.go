package usage

import (
	"net/http"

	"gateway/pkg/errors"
)

var (
	ErrInsufficientBalance = errors.NewError("INSUFFICIENT_BALANCE", "prepaid balance cannot cover this send", http.StatusPaymentRequired)
	ErrBalanceNotFound     = errors.NewError("BALANCE_NOT_FOUND", "no prepaid balance configured for tenant", http.StatusNotFound)
)
