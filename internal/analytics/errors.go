package analytics

import (
	"fmt"

	apperrors "cryptorecs/internal/errors"
)

func errDivisionByZero(minPrice, maxPrice float64) error {
	return apperrors.NewAppError(apperrors.ErrTypeDivisionByZero,
		fmt.Sprintf("spread of [%g, %g] is undefined", minPrice, maxPrice), nil).
		WithContext("min_price", minPrice).
		WithContext("max_price", maxPrice)
}
