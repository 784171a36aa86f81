package participants

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
)

func TestValidateByFlow(t *testing.T) {
	noEmail := []document.Participant{
		{Name: "Yamada", PhoneNumber: "+818012345678", Order: 1},
	}
	withEmail := []document.Participant{
		{Name: "Yamada", Email: "yamada@example.com", Order: 1},
		{Name: "Suzuki", Email: "suzuki@example.com", Order: 2},
	}

	// the same signer set is rejected or accepted depending on the flow
	require.Error(t, Validate(document.FlowStandard, noEmail))
	require.NoError(t, Validate(document.FlowEmbeddedSMS, noEmail))
	require.NoError(t, Validate(document.FlowSimplifiedAuth, noEmail))

	require.NoError(t, Validate(document.FlowStandard, withEmail))
	require.Error(t, Validate(document.FlowEmbeddedSMS, withEmail), "embedded flow needs phone numbers")
	require.NoError(t, Validate(document.FlowSimplifiedAuth, withEmail))

	require.Error(t, Validate(document.SigningFlow("bogus"), withEmail))
}

func TestValidateOrderIndices(t *testing.T) {
	base := func(orders ...int) []document.Participant {
		ps := make([]document.Participant, len(orders))
		for i, o := range orders {
			ps[i] = document.Participant{Name: "p", Email: "p@example.com", Order: o}
		}
		return ps
	}

	require.NoError(t, Validate(document.FlowStandard, base(1)))
	require.NoError(t, Validate(document.FlowStandard, base(2, 1, 3)))

	require.Error(t, Validate(document.FlowStandard, base(0)), "orders start at 1")
	require.Error(t, Validate(document.FlowStandard, base(1, 1)), "duplicate order")
	require.Error(t, Validate(document.FlowStandard, base(1, 3)), "gap in sequence")
	require.Error(t, Validate(document.FlowStandard, nil), "empty set")
}

func TestValidateRequiresName(t *testing.T) {
	err := Validate(document.FlowSimplifiedAuth, []document.Participant{{Name: "  ", Order: 1}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Reason, "name")
}

func TestValidatePhoneFormat(t *testing.T) {
	ps := []document.Participant{{Name: "Yamada", PhoneNumber: "090-1234-5678", Order: 1}}
	require.Error(t, Validate(document.FlowEmbeddedSMS, ps), "local notation must be normalized first")

	ps[0].PhoneNumber = NormalizePhone(ps[0].PhoneNumber)
	require.NoError(t, Validate(document.FlowEmbeddedSMS, ps))
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"090-1234-5678":    "+819012345678",
		"090 1234 5678":    "+819012345678",
		"(090) 1234-5678":  "+819012345678",
		"+81 90-1234-5678": "+819012345678",
		"+14155550123":     "+14155550123",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePhone(in), "input %q", in)
	}
}

func TestSorted(t *testing.T) {
	ps := []document.Participant{
		{Name: "third", Order: 3},
		{Name: "first", Order: 1},
		{Name: "second", Order: 2},
	}
	got := Sorted(ps)
	require.Equal(t, []string{"first", "second", "third"}, []string{got[0].Name, got[1].Name, got[2].Name})
	// input untouched
	require.Equal(t, "third", ps[0].Name)
}
