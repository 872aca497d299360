// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

// NormalizePhone убирает пробелы, дефисы и скобки из номера телефона.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, ch := range strings.TrimSpace(phone) {
		switch ch {
		case ' ', '-', '(', ')':
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// IsValidPhone проверяет нормализованный номер: необязательный "+" и от 6 до 15 цифр.
func IsValidPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 6 || len(digits) > 15 {
		return false
	}
	for _, ch := range digits {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// NormalizeOrderPrefix приводит префикс номера заказа к верхнему регистру.
func NormalizeOrderPrefix(prefix string) string {
	return strings.ToUpper(strings.TrimSpace(prefix))
}

// IsValidOrderPrefix проверяет префикс: от 1 до 3 латинских букв или цифр.
func IsValidOrderPrefix(prefix string) bool {
	if prefix == "" || len(prefix) > 3 {
		return false
	}
	for _, ch := range prefix {
		if !(ch >= 'A' && ch <= 'Z') && !(ch >= '0' && ch <= '9') {
			return false
		}
	}
	return true
}

// IsValidPaymentMethod проверяет, что способ оплаты поддерживается.
func IsValidPaymentMethod(m model.PaymentMethod) bool {
	switch m {
	case model.PaymentCash, model.PaymentCard, model.PaymentQPay,
		model.PaymentMonPay, model.PaymentHiPay, model.PaymentBonus:
		return true
	}
	return false
}
