package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"ivan.petrov@farm.market.ru", true},
		{"", false},
		{"no-at-sign", false},
		{"@example.com", false},
		{"user@", false},
		{"user@nodot", false},
		{"user@example.", false},
		{"two@@example.com", false},
		{"user name@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.want {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+79161234567", true},
		{"8 (916) 123-45-67", true},
		{"1234567890", true},
		{"12345", false},
		{"", false},
		{"phone", false},
		{"1234567890a", false},
		{"12+34567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			if got := IsValidPhone(tt.phone); got != tt.want {
				t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
			}
		})
	}
}

func TestIsValidQuantity(t *testing.T) {
	if IsValidQuantity(0) {
		t.Error("zero quantity must be invalid")
	}
	if IsValidQuantity(-3) {
		t.Error("negative quantity must be invalid")
	}
	if !IsValidQuantity(1) {
		t.Error("positive quantity must be valid")
	}
}

func TestIsValidAddress(t *testing.T) {
	if IsValidAddress("   ") {
		t.Error("blank address must be invalid")
	}
	if !IsValidAddress("д. Простоквашино, ул. Почтовая, 1") {
		t.Error("non-empty address must be valid")
	}
}
