package validation

import (
	"testing"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{name: "local number", phone: "99112233", valid: true},
		{name: "international", phone: "+97699112233", valid: true},
		{name: "normalized with spaces", phone: NormalizePhone("+976 9911-2233"), valid: true},
		{name: "too short", phone: "12345", valid: false},
		{name: "letters", phone: "9911abcd", valid: false},
		{name: "empty", phone: "", valid: false},
		{name: "plus only", phone: "+", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPhone(tt.phone); got != tt.valid {
				t.Fatalf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.valid)
			}
		})
	}
}

func TestIsValidOrderPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		valid  bool
	}{
		{prefix: "ORD", valid: true},
		{prefix: "BZ", valid: true},
		{prefix: "A1", valid: true},
		{prefix: "", valid: false},
		{prefix: "LONG", valid: false},
		{prefix: "bz", valid: false},
		{prefix: "B-", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := IsValidOrderPrefix(tt.prefix); got != tt.valid {
				t.Fatalf("IsValidOrderPrefix(%q) = %v, want %v", tt.prefix, got, tt.valid)
			}
		})
	}

	if got := NormalizeOrderPrefix(" sh "); got != "SH" {
		t.Fatalf("NormalizeOrderPrefix = %q, want SH", got)
	}
}

func TestIsValidPaymentMethod(t *testing.T) {
	if !IsValidPaymentMethod(model.PaymentQPay) {
		t.Fatalf("qpay must be accepted")
	}
	if IsValidPaymentMethod(model.PaymentMethod("crypto")) {
		t.Fatalf("crypto must be rejected")
	}
}
