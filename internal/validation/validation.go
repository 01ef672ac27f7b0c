// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidEmail проверяет адрес электронной почты без претензии на полноту RFC:
// непустые локальная часть и домен с точкой, ровно одна @.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return !strings.ContainsAny(email, " \t\r\n")
}

// IsValidPhone проверяет телефонный номер: от 10 до 15 цифр,
// допускается ведущий плюс и разделители.
func IsValidPhone(phone string) bool {
	digits := 0
	for i, ch := range phone {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case ch == '+' && i == 0:
		case ch == ' ' || ch == '-' || ch == '(' || ch == ')':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

// IsValidQuantity проверяет количество товара в позиции заказа.
func IsValidQuantity(quantity int64) bool {
	return quantity > 0
}

// IsValidAddress проверяет адрес доставки: непустой после обрезки пробелов.
func IsValidAddress(address string) bool {
	return strings.TrimSpace(address) != ""
}
