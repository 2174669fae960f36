package importer

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"cryptorecs/internal/config"
	apperrors "cryptorecs/internal/errors"
	"cryptorecs/pkg/contracts/domain"
)

var observationValidator = newObservationValidator()

func newObservationValidator() *validator.Validate {
	v := validator.New()
	// failures name the input column
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := strings.Split(f.Tag.Get("json"), ",")[0]; name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Mapper turns the raw fields of a record into a PriceObservation using a
// positional column mapping.
type Mapper struct {
	timestampCol int
	symbolCol    int
	priceCol     int
}

// NewMapper builds a Mapper from a column-name to index map
func NewMapper(columns map[string]int) (*Mapper, error) {
	m := &Mapper{}
	for name, dst := range map[string]*int{
		config.ColumnTimestamp: &m.timestampCol,
		config.ColumnSymbol:    &m.symbolCol,
		config.ColumnPrice:     &m.priceCol,
	} {
		idx, ok := columns[name]
		if !ok {
			return nil, apperrors.NewConfigError(fmt.Sprintf("column mapping is missing %q", name), nil)
		}
		if idx < 0 {
			return nil, apperrors.NewConfigError(fmt.Sprintf("column %q has negative index %d", name, idx), nil)
		}
		*dst = idx
	}
	return m, nil
}

// Map converts fields read from file at line
func (m *Mapper) Map(file string, line int, fields []string) (domain.PriceObservation, error) {
	raw, err := m.field(file, line, fields, config.ColumnTimestamp, m.timestampCol)
	if err != nil {
		return domain.PriceObservation{}, err
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, config.ColumnTimestamp,
			fmt.Sprintf("%q is not epoch milliseconds", raw), err)
	}

	symbol, err := m.field(file, line, fields, config.ColumnSymbol, m.symbolCol)
	if err != nil {
		return domain.PriceObservation{}, err
	}
	if symbol == "" {
		return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, config.ColumnSymbol,
			"symbol is empty", nil)
	}

	raw, err = m.field(file, line, fields, config.ColumnPrice, m.priceCol)
	if err != nil {
		return domain.PriceObservation{}, err
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, config.ColumnPrice,
			fmt.Sprintf("%q is not a number", raw), err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, config.ColumnPrice,
			fmt.Sprintf("%q is not a positive finite price", raw), nil)
	}

	obs := domain.NewPriceObservation(domain.FromEpochMillis(millis), symbol, price)
	if err := observationValidator.Struct(obs); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, fe.Field(),
				fmt.Sprintf("%v violates %s", fe.Value(), rule), err)
		}
		return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, "", err.Error(), err)
	}
	return obs, nil
}

func (m *Mapper) field(file string, line int, fields []string, name string, idx int) (string, error) {
	if idx >= len(fields) {
		return "", apperrors.NewMalformedRecordError(file, line, name,
			fmt.Sprintf("record has %d fields, column %d is missing", len(fields), idx), nil)
	}
	return strings.TrimSpace(fields[idx]), nil
}
