package domain

import (
	"testing"

	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

func TestDisplayValue(t *testing.T) {
	vocab := config.DefaultDisplayConfig()

	cases := []struct {
		value float64
		unit  featuredomain.Unit
		want  string
	}{
		{10, featuredomain.UnitEmails, "10 emails/month"},
		{500, featuredomain.UnitRequests, "500 requests/month"},
		{2.5, featuredomain.UnitGB, "2.5 GB"},
		{-1, featuredomain.UnitEmails, "Unlimited"},
		{-1, "", "Unlimited"},
		{80, featuredomain.UnitPercentage, "80%"},
		{3, featuredomain.UnitNone, "3"},
		{7, "widgets", "7 widgets"},
	}
	for _, tc := range cases {
		if got := DisplayValue(tc.value, tc.unit, vocab); got != tc.want {
			t.Fatalf("DisplayValue(%v, %q) = %q, want %q", tc.value, tc.unit, got, tc.want)
		}
	}
}

func TestDisplayValueCustomVocabulary(t *testing.T) {
	vocab := config.DisplayConfig{
		UnlimitedLabel: "No cap",
		Units:          map[string]string{"emails": "correos/mes"},
	}

	if got := DisplayValue(-1, featuredomain.UnitEmails, vocab); got != "No cap" {
		t.Fatalf("unlimited label: got %q", got)
	}
	if got := DisplayValue(10, featuredomain.UnitEmails, vocab); got != "10 correos/mes" {
		t.Fatalf("overridden noun: got %q", got)
	}
}

func TestDisplayFieldValueVariants(t *testing.T) {
	vocab := config.DefaultDisplayConfig()

	boolean, err := featuredomain.ParseFieldValue(featuredomain.FieldTypeBoolean, "true")
	if err != nil {
		t.Fatalf("parse boolean: %v", err)
	}
	if got := DisplayFieldValue(boolean, "", vocab); got != "Yes" {
		t.Fatalf("boolean true: got %q", got)
	}

	boolean, err = featuredomain.ParseFieldValue(featuredomain.FieldTypeBoolean, "false")
	if err != nil {
		t.Fatalf("parse boolean: %v", err)
	}
	if got := DisplayFieldValue(boolean, "", vocab); got != "No" {
		t.Fatalf("boolean false: got %q", got)
	}

	text, err := featuredomain.ParseFieldValue(featuredomain.FieldTypeString, "  priority  ")
	if err != nil {
		t.Fatalf("parse string: %v", err)
	}
	if got := DisplayFieldValue(text, "", vocab); got != "priority" {
		t.Fatalf("string: got %q", got)
	}

	number, err := featuredomain.ParseFieldValue(featuredomain.FieldTypeNumber, "100")
	if err != nil {
		t.Fatalf("parse number: %v", err)
	}
	if got := DisplayFieldValue(number, featuredomain.UnitUsers, vocab); got != "100 users" {
		t.Fatalf("number: got %q", got)
	}
}
