package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_MissingBookWinsOverDays(t *testing.T) {
	tests := []struct {
		name     string
		daysLeft int
	}{
		{name: "sentinel", daysLeft: DaysAbsent},
		{name: "negative", daysLeft: -5},
		{name: "zero", daysLeft: 0},
		{name: "positive", daysLeft: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{Name: "Ivanov", DaysLeft: tt.daysLeft, HasMedicalBook: false}
			assert.Equal(t, StatusNoMedicalBook, Classify(r))
		})
	}
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		daysLeft int
		want     Status
	}{
		{name: "just expired", daysLeft: -1, want: StatusExpired},
		{name: "deeply expired", daysLeft: -400, want: StatusExpired},
		{name: "expires today", daysLeft: 0, want: StatusCritical},
		{name: "last critical day", daysLeft: 30, want: StatusCritical},
		{name: "first ok day", daysLeft: 31, want: StatusOK},
		{name: "far out", daysLeft: 365, want: StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{Name: "Ivanov", DaysLeft: tt.daysLeft, HasMedicalBook: true}
			assert.Equal(t, tt.want, Classify(r))
		})
	}
}

func TestPartition(t *testing.T) {
	records := []Record{
		{Name: "Ivanov", DaysLeft: -5, HasMedicalBook: true},
		{Name: "Petrov", DaysLeft: 20, HasMedicalBook: true},
		{Name: "Sidorov", DaysLeft: DaysAbsent, HasMedicalBook: false},
		{Name: "Smirnov", DaysLeft: 90, HasMedicalBook: true},
		{Name: "Orlov", DaysLeft: -1, HasMedicalBook: true},
	}

	expired, critical, noBook := Partition(records)

	assert.Equal(t, []Record{records[0], records[4]}, expired)
	assert.Equal(t, []Record{records[1]}, critical)
	assert.Equal(t, []Record{records[2]}, noBook)
}

func TestPartition_AllOK(t *testing.T) {
	expired, critical, noBook := Partition([]Record{
		{Name: "Ivanov", DaysLeft: 100, HasMedicalBook: true},
	})
	assert.Empty(t, expired)
	assert.Empty(t, critical)
	assert.Empty(t, noBook)
}

func TestKey(t *testing.T) {
	r := Record{Name: "Ivanov", DaysLeft: 20, HasMedicalBook: true}
	assert.Equal(t, "Ivanov_20_true", r.Key())

	r = Record{Name: "Sidorov", DaysLeft: DaysAbsent, HasMedicalBook: false}
	assert.Equal(t, "Sidorov_-999_false", r.Key())
}

func TestKey_ChangesWithDaysLeft(t *testing.T) {
	a := Record{Name: "Ivanov", DaysLeft: 20, HasMedicalBook: true}
	b := a
	b.DaysLeft = 19
	assert.NotEqual(t, a.Key(), b.Key())

	// Position changes do not affect identity.
	c := a
	c.Position = "Повар"
	assert.Equal(t, a.Key(), c.Key())
}
