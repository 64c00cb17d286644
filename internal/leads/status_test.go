package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"New Lead", StatusNew},
		{"  new lead  ", StatusNew},
		{"NEW", StatusNew},
		{"Follow-up", StatusFollowUp},
		{"follow up", StatusFollowUp},
		{" FOLLOWUP", StatusFollowUp},
		{"Closed", StatusOther},
		{"", StatusOther},
		{"   ", StatusOther},
		{"Converted", StatusOther},
		// substring policy: "new" wins over everything else
		{"Not a new customer", StatusNew},
		{"Renewal follow-up", StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestStatusPending(t *testing.T) {
	assert.True(t, StatusNew.Pending())
	assert.True(t, StatusFollowUp.Pending())
	assert.False(t, StatusOther.Pending())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "new", StatusNew.String())
	assert.Equal(t, "follow_up", StatusFollowUp.String())
	assert.Equal(t, "other", StatusOther.String())
}
