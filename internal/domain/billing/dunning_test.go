package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDunning(t *testing.T, level int) *Dunning {
	t.Helper()
	due := time.Now().AddDate(0, 0, -45)
	d, err := NewDunning(uuid.New(), uuid.New(), "INV-2026-00001", "cust_001", level, &due)
	require.NoError(t, err)
	return d
}

// ============================================
// DunningStatus Tests
// ============================================

func TestDunningStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  DunningStatus
		isValid bool
	}{
		{DunningStatusPending, true},
		{DunningStatusSent, true},
		{DunningStatusCancelled, true},
		{DunningStatus("DELIVERED"), false},
		{DunningStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestDunningStatus_IsActive(t *testing.T) {
	assert.True(t, DunningStatusPending.IsActive())
	assert.True(t, DunningStatusSent.IsActive())
	assert.False(t, DunningStatusCancelled.IsActive(), "cancelled reminders free their level")
}

// ============================================
// NewDunning Tests
// ============================================

func TestNewDunning_Success(t *testing.T) {
	d := createTestDunning(t, 1)

	assert.Equal(t, DunningStatusPending, d.Status)
	assert.Equal(t, 1, d.ReminderLevel)
	assert.Nil(t, d.SentAt)
	assert.Empty(t, d.TemplateUsed)

	events := d.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventDunningCreated, events[0].EventType())
}

func TestNewDunning_Validation(t *testing.T) {
	_, err := NewDunning(uuid.New(), uuid.Nil, "INV-2026-00001", "cust_001", 1, nil)
	assert.Error(t, err)

	_, err = NewDunning(uuid.New(), uuid.New(), "INV-2026-00001", "cust_001", 0, nil)
	assert.Error(t, err)

	_, err = NewDunning(uuid.New(), uuid.New(), "INV-2026-00001", "cust_001", -2, nil)
	assert.Error(t, err)
}

// ============================================
// Send Tests
// ============================================

func TestDunning_Send(t *testing.T) {
	d := createTestDunning(t, 2)
	d.ClearDomainEvents()

	err := d.Send("reminder_level_2")
	require.NoError(t, err)

	assert.Equal(t, DunningStatusSent, d.Status)
	require.NotNil(t, d.SentAt)
	assert.Equal(t, "reminder_level_2", d.TemplateUsed)

	events := d.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventDunningSent, events[0].EventType())
}

func TestDunning_Send_OnlyPending(t *testing.T) {
	d := createTestDunning(t, 1)
	require.NoError(t, d.Send("reminder_level_1"))

	assert.Error(t, d.Send("reminder_level_1"), "a reminder is delivered at most once")

	cancelled := createTestDunning(t, 1)
	require.NoError(t, cancelled.Cancel())
	assert.Error(t, cancelled.Send("reminder_level_1"))
}

func TestDunning_Send_RequiresTemplate(t *testing.T) {
	d := createTestDunning(t, 1)

	err := d.Send("")
	assert.Error(t, err)
	assert.Equal(t, DunningStatusPending, d.Status)
}

// ============================================
// Cancel Tests
// ============================================

func TestDunning_Cancel(t *testing.T) {
	d := createTestDunning(t, 3)

	err := d.Cancel()
	require.NoError(t, err)

	assert.Equal(t, DunningStatusCancelled, d.Status)
	require.NotNil(t, d.CancelledAt)
	assert.False(t, d.Status.IsActive())
}

func TestDunning_Cancel_OnlyPending(t *testing.T) {
	d := createTestDunning(t, 1)
	require.NoError(t, d.Send("reminder_level_1"))

	assert.Error(t, d.Cancel(), "sent reminders are part of the audit trail")
}
