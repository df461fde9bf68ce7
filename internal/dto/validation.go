package dto

import (
	"reflect"

	"github.com/SscSPs/credit_ledger_service/internal/utils/accounting"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RegisterValidators adds the decimal validators used by the request DTOs. Decimals
// are validated through their string form; a nil *decimal.Decimal stays nil, so
// "required" rejects an absent field.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("decimal_gt0", decimalGreaterThanZero); err != nil {
		return err
	}
	if err := v.RegisterValidation("decimal_gte0", decimalNotNegative); err != nil {
		return err
	}
	return v.RegisterValidation("money_scale", decimalMoneyScale)
}

func decimalFromField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func decimalGreaterThanZero(fl validator.FieldLevel) bool {
	d, ok := decimalFromField(fl)
	return ok && d.IsPositive()
}

func decimalNotNegative(fl validator.FieldLevel) bool {
	d, ok := decimalFromField(fl)
	return ok && !d.IsNegative()
}

func decimalMoneyScale(fl validator.FieldLevel) bool {
	d, ok := decimalFromField(fl)
	return ok && accounting.HasMoneyScale(d)
}
