package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		currency string
		want     string
		wantErr  error
	}{
		{
			name:     "ugandan trunk format",
			raw:      "0772123456",
			currency: "UGX",
			want:     "+256772123456",
		},
		{
			name:     "already international with punctuation",
			raw:      "+256 772-123-456",
			currency: "UGX",
			want:     "+256772123456",
		},
		{
			name:     "country code without plus",
			raw:      "256772123456",
			currency: "UGX",
			want:     "+256772123456",
		},
		{
			name:     "bare national number",
			raw:      "772123456",
			currency: "UGX",
			want:     "+256772123456",
		},
		{
			name:     "kenyan trunk format",
			raw:      "0712345678",
			currency: "KES",
			want:     "+254712345678",
		},
		{
			name:     "tanzanian international",
			raw:      "+255754123456",
			currency: "TZS",
			want:     "+255754123456",
		},
		{
			name:     "too short",
			raw:      "077212345",
			currency: "UGX",
			wantErr:  ErrInvalidPhone,
		},
		{
			name:     "too long",
			raw:      "07721234567",
			currency: "UGX",
			wantErr:  ErrInvalidPhone,
		},
		{
			name:     "no digits",
			raw:      "call me",
			currency: "UGX",
			wantErr:  ErrInvalidPhone,
		},
		{
			name:     "unsupported currency",
			raw:      "0772123456",
			currency: "USD",
			wantErr:  ErrUnknownCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveOperator(t *testing.T) {
	t.Run("supplied operator wins", func(t *testing.T) {
		assert.Equal(t, "mtn", ResolveOperator("mtn", "+256701234567", "UGX"))
	})

	t.Run("inferred from prefix", func(t *testing.T) {
		assert.Equal(t, "mtn", ResolveOperator("", "+256772123456", "UGX"))
		assert.Equal(t, "airtel", ResolveOperator("", "+256701234567", "UGX"))
		assert.Equal(t, "safaricom", ResolveOperator("", "+254712345678", "KES"))
		assert.Equal(t, "vodacom", ResolveOperator("", "+255754123456", "TZS"))
	})

	t.Run("unknown prefix resolves to empty", func(t *testing.T) {
		assert.Empty(t, ResolveOperator("", "+256991234567", "UGX"))
	})
}

func TestMajorAmount(t *testing.T) {
	t.Run("ugx has no minor subdivision", func(t *testing.T) {
		got, err := MajorAmount(50_000, "UGX")
		require.NoError(t, err)
		assert.Equal(t, "50000", got.String())
	})

	t.Run("kes uses cents", func(t *testing.T) {
		got, err := MajorAmount(150_050, "KES")
		require.NoError(t, err)
		assert.Equal(t, "1500.5", got.String())
	})

	t.Run("unsupported currency", func(t *testing.T) {
		_, err := MajorAmount(100, "USD")
		assert.ErrorIs(t, err, ErrUnknownCurrency)
	})
}

func TestNewReference(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewReference()
		assert.Len(t, ref, 20)
		assert.Equal(t, "YW", ref[:2])
		assert.NoError(t, ValidateReference(ref))
		assert.False(t, seen[ref], "reference %s repeated", ref)
		seen[ref] = true
	}
}

func TestValidateReference(t *testing.T) {
	assert.Error(t, ValidateReference("SHORT"))
	assert.Error(t, ValidateReference("THIS-REFERENCE-IS-WAY-TOO-LONG-FOR-THE-GATEWAY"))
	assert.NoError(t, ValidateReference("EXACTLY8"))
}
